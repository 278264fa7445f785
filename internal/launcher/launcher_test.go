package launcher

import (
	"errors"
	"os"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductFor(t *testing.T) {
	tests := []struct {
		game    string
		product string
		wantErr bool
	}{
		{game: "lol", product: "league_of_legends"},
		{game: "lor", product: "bacon"},
		{game: "valorant", product: "valorant"},
		{game: "lion", product: "lion"},
		{game: "riot-client", product: ""},
		{game: "fortnite", wantErr: true},
		{game: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.game, func(t *testing.T) {
			product, err := ProductFor(tt.game)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.product, product)
		})
	}
}

func TestLaunchReapsChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX true binary")
	}

	cmd, err := Launch("true", 12345, "", "")
	require.NoError(t, err)

	// Signal 0 probes the process: a reaped child reports ErrProcessDone,
	// a zombie still accepts the signal.
	assert.Eventually(t, func() bool {
		return errors.Is(cmd.Process.Signal(syscall.Signal(0)), os.ErrProcessDone)
	}, 2*time.Second, 10*time.Millisecond, "exited child must be reaped")
}
