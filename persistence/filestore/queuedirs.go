package filestore

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/xattr"
	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/util"
	"golang.org/x/sys/unix"
)

const queueDirHashLength = 8
const xattrGroupName = "user.logchannelGroup"

// groupNameFile keeps the group name for filesystems without user xattr
const groupNameFile = ".group"

func makeGroupQueueDir(parentLogger logger.Logger, rootPath string, group string) string {
	dirname := sanitizeDirName(group)
	if dirname != group {
		parentLogger.Warnf("unclean group name as dirname: '%s'", group)
	}
	// names different before sanitization still get unique dirs due to hash
	hash := util.HashToHexdigest(group)
	path := filepath.Join(rootPath, dirname+"."+hash[len(hash)-queueDirHashLength:])

	if derr := os.MkdirAll(path, 0o755); derr != nil {
		parentLogger.Errorf("error creating queue dir path='%s': %s", path, derr.Error())
		return path
	}
	if xerr := xattr.Set(path, xattrGroupName, []byte(group)); xerr != nil {
		parentLogger.Debugf("error labelling group on queue dir path='%s', fallback to file: %s", path, xerr.Error())
		if ferr := os.WriteFile(filepath.Join(path, groupNameFile), []byte(group), 0o644); ferr != nil {
			parentLogger.Errorf("error labelling group on queue dir path='%s': %s", path, ferr.Error())
		}
	}
	return path
}

// listGroupQueueDirs lists group names to queue dir paths under rootPath
func listGroupQueueDirs(parentLogger logger.Logger, rootPath string) map[string]string {
	rootDir, oerr := os.Open(rootPath)
	if oerr != nil {
		if !os.IsNotExist(oerr) {
			parentLogger.Errorf("error opening root dir: %s", oerr.Error())
		}
		return nil
	}
	defer rootDir.Close()

	entryNames, rerr := rootDir.Readdirnames(0)
	if rerr != nil {
		parentLogger.Errorf("error scanning root dir: %s", rerr.Error())
		return nil
	}
	sort.Strings(entryNames)

	result := make(map[string]string, len(entryNames))
	for _, name := range entryNames {
		path := filepath.Join(rootPath, name)

		stat, serr := util.StatFileAt(rootDir, name)
		if serr != nil {
			parentLogger.Errorf("error stating entry path='%s': %s", path, serr.Error())
			continue
		}
		if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
			continue
		}

		group := readGroupLabel(path)
		if group == "" {
			parentLogger.Warnf("ignore queue dir without group name, path='%s'", path)
			continue
		}
		result[group] = path
	}
	return result
}

func readGroupLabel(path string) string {
	if nameBytes, xerr := xattr.Get(path, xattrGroupName); xerr == nil && len(nameBytes) > 0 {
		return string(nameBytes)
	}
	if nameBytes, ferr := os.ReadFile(filepath.Join(path, groupNameFile)); ferr == nil {
		return string(nameBytes)
	}
	return ""
}

func sanitizeDirName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case 0, '/', '.':
			c = '_'
		}
		result[i] = c
	}
	return string(result)
}
