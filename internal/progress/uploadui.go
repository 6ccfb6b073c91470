// Package progress renders per-file upload progress in the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// UploadUI manages one spinner bar per in-flight upload using mpb. Uploads
// are single buffered requests, so bars show activity and elapsed time
// rather than byte counts.
type UploadUI struct {
	progress   *mpb.Progress
	bars       sync.Map // item id -> *FileBar
	isTerminal bool
	totalFiles int
	started    int32
}

// FileBar is the rendering handle for one upload item.
type FileBar struct {
	bar       *mpb.Bar
	ui        *UploadUI
	index     int
	filename  string
	size      int64
	startTime time.Time
}

// NewUploadUI creates the upload progress renderer. Bars go to stderr so
// stdout stays clean for log lines and summaries.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableWindowsANSI(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(64),
		)
	} else {
		// Non-TTY: no bars, plain text messages only
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// AddFileBar creates a spinner bar for an upload item.
func (u *UploadUI) AddFileBar(itemID, path string, size int64) *FileBar {
	index := int(atomic.AddInt32(&u.started, 1))
	filename := filepath.Base(path)

	fb := &FileBar{
		ui:        u,
		index:     index,
		filename:  filename,
		size:      size,
		startTime: time.Now(),
	}

	if u.isTerminal {
		fb.bar = u.progress.New(-1,
			mpb.SpinnerStyle(),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s (%.1f MiB)",
					index, u.totalFiles, filename, float64(size)/(1024*1024)), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Printf("Uploading [%d/%d]: %s (%.1f MiB)\n",
			index, u.totalFiles, filename, float64(size)/(1024*1024))
	}

	u.bars.Store(itemID, fb)
	return fb
}

// Bar returns the bar for an item id, if one was created.
func (u *UploadUI) Bar(itemID string) (*FileBar, bool) {
	v, ok := u.bars.Load(itemID)
	if !ok {
		return nil, false
	}
	return v.(*FileBar), true
}

// Complete settles the bar and prints the outcome above remaining bars.
func (f *FileBar) Complete(photoID, errMessage string) {
	elapsed := time.Since(f.startTime).Round(time.Second)

	if errMessage == "" {
		if f.bar != nil {
			f.bar.SetTotal(-1, true)
		}
		msg := fmt.Sprintf("done %s (photo %s, %s)\n", f.filename, photoID, elapsed)
		if f.ui.isTerminal {
			f.ui.progress.Write([]byte(msg))
		} else {
			fmt.Print(msg)
		}
		return
	}

	if f.bar != nil {
		f.bar.Abort(true)
	}
	msg := fmt.Sprintf("FAILED %s: %s\n", f.filename, errMessage)
	if f.ui.isTerminal {
		f.ui.progress.Write([]byte(msg))
	} else {
		fmt.Print(msg)
	}
}

// Wait blocks until every bar has settled and the renderer has flushed.
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// LogWriter returns a writer that prints above active bars without tearing
// them. Redirect the logger here while bars are live.
func (u *UploadUI) LogWriter() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return os.Stdout
}

// IsTerminal reports whether stderr is a TTY.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}
