// Package profile locates the files of a chatty profile. A profile is an
// isolated daemon instance with its own database, socket and accounts.
package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "CHATTY_HOME"

// BaseDir returns $CHATTY_HOME, or ~/.chatty.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatty")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Paths resolves the files of one profile under Base.
type Paths struct {
	Base string
	Name string
}

// For returns the paths of the named profile under BaseDir.
func For(name string) Paths {
	return Paths{Base: BaseDir(), Name: name}
}

// Dir returns the profile directory.
func (p Paths) Dir() string {
	return filepath.Join(p.Base, "profiles", p.Name)
}

// Socket returns the daemon's unix socket path.
func (p Paths) Socket() string {
	return filepath.Join(p.Dir(), "daemon.sock")
}

// Lock returns the lock file path.
func (p Paths) Lock() string {
	return filepath.Join(p.Dir(), "LOCK")
}

// AppDB returns the path of chatty.db, which holds chats, messages and accounts.
func (p Paths) AppDB() string {
	return filepath.Join(p.Dir(), "chatty.db")
}

// AccountDB returns the path of a backend's private store, such as the
// whatsmeow device database.
func (p Paths) AccountDB(account string) string {
	return filepath.Join(p.Dir(), "accounts", account+".db")
}

func (p Paths) LogDir() string {
	return filepath.Join(p.Dir(), "logs")
}

// Log returns the daemon log file path.
func (p Paths) Log() string {
	return filepath.Join(p.LogDir(), "chattyd.log")
}

// EnsureDir creates the profile directory tree, private to the user.
func (p Paths) EnsureDir() error {
	for _, d := range []string{p.Dir(), p.LogDir(), filepath.Join(p.Dir(), "accounts")} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
