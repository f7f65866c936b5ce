package fsutil

import (
	"os"
	"path/filepath"
)

// GetCacheDir returns the platform-specific cache directory for urlcache.
// On Linux: ~/.cache/urlcache/
// On macOS: ~/Library/Caches/urlcache/
// On Windows: %LOCALAPPDATA%\urlcache\
func GetCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// GetConfigDir returns the platform-specific configuration directory for urlcache.
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// DirSize walks dir and returns the total size and number of regular files.
// A missing directory counts as empty.
func DirSize(dir string) (size int64, count int, err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}

	err = filepath.Walk(dir, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.Mode().IsRegular() {
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count, err
}
