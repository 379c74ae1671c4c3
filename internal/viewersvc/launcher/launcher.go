// Package launcher opens board test logs in the station's log viewer.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrLogNotFound = errors.New("log file not found")

type Launcher struct {
	viewer string
	root   string // prefix for relative and drive-letter references, may be empty
	start  func(name string, args ...string) error
}

func New(viewer, root string) *Launcher {
	return &Launcher{viewer: viewer, root: root, start: startDetached}
}

// Open resolves logRef and starts the viewer on it.
func (l *Launcher) Open(logRef string) (string, error) {
	path, err := l.Resolve(logRef)
	if err != nil {
		return "", err
	}

	if err := l.start(l.viewer, path); err != nil {
		return "", fmt.Errorf("failed to start viewer %s: %w", l.viewer, err)
	}
	log.Infof("opened %s in %s", path, l.viewer)

	return path, nil
}

// Resolve tries the reference as given and then the date folder named by the
// file, e.g. logs/3-20240101-xyz.log may have been archived to
// logs/20240101/3-20240101-xyz.log.
func (l *Launcher) Resolve(logRef string) (string, error) {
	if logRef == "" {
		return "", fmt.Errorf("%w: empty reference", ErrLogNotFound)
	}

	path := l.localPath(logRef)
	if isFile(path) {
		return path, nil
	}

	dir, name := filepath.Split(path)
	if date, ok := logDate(name); ok {
		archived := filepath.Join(dir, date, name)
		if isFile(archived) {
			return archived, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrLogNotFound, logRef)
}

// localPath maps a station reference onto this host. Off Windows a drive
// letter has no meaning, so C:\logs\x.log is looked up as logs/x.log under
// the root, which is where the station's drive is expected to be mounted.
func (l *Launcher) localPath(logRef string) string {
	p := logRef
	if filepath.Separator == '/' {
		p = strings.ReplaceAll(stripDrive(p), `\`, "/")
	}
	if l.root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(l.root, p)
	}
	return p
}

func stripDrive(p string) string {
	if len(p) < 3 || p[1] != ':' || (p[2] != '\\' && p[2] != '/') {
		return p
	}
	if c := p[0] | 0x20; c < 'a' || c > 'z' {
		return p
	}
	return p[3:]
}

// logDate returns the YYYYMMDD field that follows the position prefix.
func logDate(name string) (string, bool) {
	_, rest, found := strings.Cut(name, "-")
	if !found || len(rest) < 8 {
		return "", false
	}
	date := rest[:8]
	if _, err := time.Parse("20060102", date); err != nil {
		return "", false
	}
	return date, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
