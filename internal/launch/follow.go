package launch

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// Follow copies the contents of a log file to w and keeps copying new
// output until ctx is done. It waits for the file to appear for up to
// ten poll intervals.
func Follow(ctx context.Context, path string, w io.Writer, poll time.Duration) error {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}

	var f *os.File
	for attempt := 0; ; attempt++ {
		var err error
		f, err = os.Open(path)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) || attempt >= 10 {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}
	}
	defer f.Close()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if _, err := io.Copy(w, f); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
