package cache

import "github.com/glorpus-work/urlcache/pkg/fsutil"

// CacheDirPerm is the permission mode an emptied object root is recreated with.
var CacheDirPerm = fsutil.DirModeDefault
