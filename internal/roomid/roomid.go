package roomid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// maxAttempts bounds how many word combinations are tried before a numeric
// suffix is added.
const maxAttempts = 32

// Generator creates memorable room IDs such as "brave-otter-lantern".
type Generator struct {
	lists [][]string
	pick  func(n int) int
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{
		lists: [][]string{adjectives, animals, things},
		pick:  randomIndex,
	}
}

// Generate returns an ID for which inUse reports false. inUse may be nil.
func (g *Generator) Generate(inUse func(id string) bool) string {
	for i := 0; i < maxAttempts; i++ {
		id := g.candidate()
		if inUse == nil || !inUse(id) {
			return id
		}
	}

	for {
		id := fmt.Sprintf("%s-%d", g.candidate(), g.pick(1000))
		if !inUse(id) {
			return id
		}
	}
}

func (g *Generator) candidate() string {
	words := make([]string, len(g.lists))
	for i, list := range g.lists {
		words[i] = list[g.pick(len(list))]
	}
	return strings.Join(words, "-")
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("roomid: random index: %v", err))
	}
	return int(n.Int64())
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"chick", "duckling", "fawn", "foal", "lamb", "calf", "porcupine", "raccoon", "skunk", "mole",
	"penguin", "flamingo", "pelican", "swallow", "sparrow", "robin", "toucan", "parrot", "canary", "narwhal",
}

var things = []string{
	"sunbeam", "stardust", "pepper", "muffin", "bubble", "sprout", "glimmer", "whisker", "echo", "jelly",
	"marble", "maple", "cocoa", "hazel", "breeze", "meadow", "willow", "ember", "lantern", "pebble",
	"cottage", "rocket", "comet", "orbit", "nebula", "canyon", "ridge", "button", "puddle", "thimble",
}
