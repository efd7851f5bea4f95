package recording

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gowvp/camcore/internal/errcode"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/reason"
)

// 文件名不带时长时按 1Mbps 码率估算
const (
	bytesPerSecond  = 125000
	fallbackSeconds = 6.0
)

var segmentDurationRe = regexp.MustCompile(`_(\d+(?:\.\d+)?)s\.ts$`)

// SegmentDuration 优先取文件名中的时长，否则按文件大小估算，都不可用时为 6 秒
func SegmentDuration(name string, size int64) float64 {
	if m := segmentDurationRe.FindStringSubmatch(name); m != nil {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil && d > 0 {
			return d
		}
	}
	if size > 0 {
		if d := float64(size) / bytesPerSecond; d > 0 {
			return d
		}
	}
	return fallbackSeconds
}

// Segments 返回某天（或某小时）的切片，按小时和文件名排序
// hour 为空时包含当天所有小时
func (c *Core) Segments(cameraID, date, hour string) ([]SegmentInfo, error) {
	if err := checkParams(cameraID, date, hour, ""); err != nil {
		return nil, err
	}
	if date == "" {
		return nil, reason.ErrBadRequest.Withf("date is required")
	}
	dayDir, err := c.resolve(cameraID, date)
	if err != nil {
		return nil, err
	}

	hours := []string{hour}
	if hour == "" {
		entries, err := os.ReadDir(dayDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errcode.ErrNotFound.Withf("no recordings for %s", date)
			}
			return nil, reason.ErrServer.Withf("%s", err.Error())
		}
		hours = hours[:0]
		for _, e := range entries {
			if e.IsDir() && hourRe.MatchString(e.Name()) {
				hours = append(hours, e.Name())
			}
		}
		slices.Sort(hours)
	}

	out := make([]SegmentInfo, 0, 600)
	for _, h := range hours {
		entries, err := os.ReadDir(filepath.Join(dayDir, h))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, reason.ErrServer.Withf("%s", err.Error())
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".ts") {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)
		for _, name := range names {
			var size int64
			if fi, err := os.Stat(filepath.Join(dayDir, h, name)); err == nil {
				size = fi.Size()
			}
			out = append(out, SegmentInfo{
				Name:     name,
				Hour:     h,
				Size:     size,
				Duration: SegmentDuration(name, size),
				URI:      "/recordings/" + path.Join(cameraID, date, h, name),
			})
		}
	}
	return out, nil
}

// BuildPlaylist 生成 VOD 回放清单
// TARGETDURATION 取切片最大时长向上取整，没有切片时返回 404
func (c *Core) BuildPlaylist(cameraID, date, hour string) (string, error) {
	segs, err := c.Segments(cameraID, date, hour)
	if err != nil {
		return "", err
	}
	if len(segs) == 0 {
		return "", errcode.ErrNotFound.Withf("no recordings for %s %s", date, hour)
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(len(segs)))
	if err != nil {
		return "", reason.ErrServer.Withf("%s", err.Error())
	}
	pl.MediaType = m3u8.VOD
	var maxDur float64
	for _, seg := range segs {
		if err := pl.Append(seg.URI, seg.Duration, ""); err != nil {
			return "", reason.ErrServer.Withf("%s", err.Error())
		}
		maxDur = max(maxDur, seg.Duration)
	}
	pl.TargetDuration = math.Ceil(maxDur)
	pl.Close()
	return pl.String(), nil
}
