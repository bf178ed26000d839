package version

// Version is the current version of the pairroom binaries.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/NALLAMDEEPAK/DeepCode-sub000/internal/version.Version=v1.0.0'"
var Version = "dev"
