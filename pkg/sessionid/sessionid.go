// Package sessionid generates logical-owner identities for worker runs.
//
// A session identifies one worker run, not an OS process: pid means
// nothing across hosts, so ownership comparisons use only this token.
// The format is <host>-<unixMillis>-<randomHex>; only uniqueness plus a
// human-diagnosable hostname prefix is contractually required.
package sessionid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/drover-project/drover/pkg/pathutil"
)

// New generates a fresh session identifier for this process.
// Panics if crypto/rand fails (system-level error, should never happen
// on a healthy system).
func New() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d-%s",
		pathutil.SanitizeHostComponent(host),
		time.Now().UnixMilli(),
		randomHex(6))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// Entropy exhaustion or a broken random source. There is no
		// recovery, so panic rather than return an error that would
		// need handling everywhere.
		panic("drover: crypto/rand failed (system error): " + err.Error())
	}
	return hex.EncodeToString(buf)
}
