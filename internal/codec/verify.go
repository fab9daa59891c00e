package codec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const verifyErrLimit = 100

// QuickVerify runs the external verifier against a library file. The tool's
// output is noisy, so failures surface only the last line, truncated.
func QuickVerify(ctx context.Context, bin, path string) error {
	cmd := exec.CommandContext(ctx, bin, "--quick-verify", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err == nil {
		return nil
	}
	msg := lastLine(stderr.String())
	if msg == "" {
		msg = lastLine(stdout.String())
	}
	if msg == "" {
		msg = "verifier exited with an error"
	}
	return fmt.Errorf("%s", msg)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if len(s) > verifyErrLimit {
		s = s[:verifyErrLimit]
	}
	return s
}
