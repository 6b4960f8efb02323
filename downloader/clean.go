package downloader

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"

	"novel-epub/extractor"
	"novel-epub/utils"
)

var blankContent = regexp.MustCompile(`[\s\x{200b}\x{200c}\x{200d}\x{feff}]+`)

// Clean removes chapter files whose content container is empty, so the next pass downloads them again.
// Files without a recognizable container are left alone.
func Clean(dir string, log *logrus.Entry) ([]string, error) {
	names, err := utils.ListHTML(dir)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0)
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("Failed to read %s: %v", name, err)
			continue
		}
		inner, ok := extractor.ContainerHTML(string(raw))
		if !ok || blankContent.ReplaceAllString(inner, "") != "" {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to remove %s: %v", name, err)
			continue
		}
		log.Infof("Removed empty chapter %s", name)
		removed = append(removed, name)
	}
	return removed, nil
}
