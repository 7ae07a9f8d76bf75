package girc

import (
	"math/rand"
	"time"
)

func randSleep() {
	rand.Seed(time.Now().UnixNano())
	time.Sleep(time.Duration(rand.Intn(25)) * time.Millisecond)
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randString returns a random string of ASCII letters of length n, used to
// generate identifiers for unnamed rules and temporary dispatch rules
// (see ruleRegistry.Add, Client.addTmpRule in dispatch.go).
func randString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Int63()%int64(len(letterBytes))]
	}
	return string(b)
}
