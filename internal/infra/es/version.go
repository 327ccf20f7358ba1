package es

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vietddude/esguard/internal/core/domain"
)

// ErrReaderIndexNotFound is returned by Version when no index matches the reader index.
var ErrReaderIndexNotFound = errors.New("index specified in reader does not exist")

const defaultMaxResultWindow = 10000

// windowCheckSince is the first version that reports max_result_window.
var windowCheckSince = []int{2, 1, 0}

// IndexWindow is the max_result_window of one reader index.
type IndexWindow struct {
	Name       string `json:"name"`
	WindowSize int    `json:"window_size"`
}

// VersionInfo is the outcome of the version check.
type VersionInfo struct {
	Version string        `json:"version"`
	Windows []IndexWindow `json:"windows,omitempty"`
}

// Version reads the cluster version and, on clusters that support it, warns
// about the max_result_window of every index the reader targets.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	stats, err := c.transport.ClusterStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cluster stats: %w", err)
	}
	if len(stats.Nodes.Versions) == 0 {
		return nil, errors.New("cluster stats reported no node versions")
	}

	info := &VersionInfo{Version: stats.Nodes.Versions[0]}

	parsed, ok := parseVersion(info.Version)
	if !ok {
		c.log.Debug("Skipping max_result_window check for unparsable version", "version", info.Version)
		return info, nil
	}
	if slices.Compare(parsed, windowCheckSince) < 0 {
		return info, nil
	}

	settings, err := c.transport.IndexSettings(ctx)
	if err != nil {
		c.log.Error("Failed to read index settings", "error", err)
		return nil, fmt.Errorf("index settings: %w", err)
	}

	windows, err := matchReaderIndex(settings, c.reader.Index)
	if err != nil {
		c.log.Error(err.Error(), "index", c.reader.Index)
		return nil, err
	}

	for _, w := range windows {
		c.log.Warn("Slices of very large indices may not divide below max_result_window and fail in the cluster; raise max_result_window in the index settings if that happens",
			"index", w.Name,
			"max_result_window", w.WindowSize,
		)
	}
	info.Windows = windows
	return info, nil
}

// matchReaderIndex matches name exactly, or else as a regular expression.
func matchReaderIndex(settings map[string]domain.IndexSettings, name string) ([]IndexWindow, error) {
	if s, ok := settings[name]; ok {
		return []IndexWindow{{Name: name, WindowSize: windowSize(s)}}, nil
	}

	re, err := regexp.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid index pattern %q: %v", ErrReaderIndexNotFound, name, err)
	}

	names := make([]string, 0, len(settings))
	for idx := range settings {
		if re.MatchString(idx) {
			names = append(names, idx)
		}
	}
	if len(names) == 0 {
		return nil, ErrReaderIndexNotFound
	}
	slices.Sort(names)

	windows := make([]IndexWindow, 0, len(names))
	for _, idx := range names {
		windows = append(windows, IndexWindow{Name: idx, WindowSize: windowSize(settings[idx])})
	}
	return windows, nil
}

func windowSize(s domain.IndexSettings) int {
	n, err := strconv.Atoi(s.Settings.Index.MaxResultWindow)
	if err != nil || n <= 0 {
		return defaultMaxResultWindow
	}
	return n
}

// parseVersion parses the leading dotted integers of v ("7.10.2-SNAPSHOT" -> 7,10,2).
func parseVersion(v string) ([]int, bool) {
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil, false
	}

	parts := strings.Split(v, ".")
	out := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	for len(out) < 3 {
		out = append(out, 0)
	}
	return out, true
}
