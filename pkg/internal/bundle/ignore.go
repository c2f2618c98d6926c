package bundle

import "strings"

// Ignored 判断条目是否为操作系统产生的元数据文件，这类条目永远不会被存储.
func Ignored(entry string) bool {
	switch {
	case strings.HasPrefix(entry, "__MACOSX/"):
		return true
	case strings.Contains(entry, "/.DS_Store"), strings.HasSuffix(entry, ".DS_Store"):
		return true
	case entry == "Thumbs.db", strings.HasSuffix(entry, "/Thumbs.db"):
		return true
	case entry == "desktop.ini", strings.HasSuffix(entry, "/desktop.ini"):
		return true
	}

	return false
}
