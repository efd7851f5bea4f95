package recording

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gowvp/camcore/internal/errcode"
	"github.com/ixugo/goddd/pkg/reason"
)

var (
	cameraIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	hourRe     = regexp.MustCompile(`^([01]\d|2[0-3])$`)
	segmentRe  = regexp.MustCompile(`^[A-Za-z0-9_.-]+\.ts$`)
)

// hasTraversal 路径参数中出现目录穿越或分隔符
func hasTraversal(s string) bool {
	return strings.Contains(s, "..") || strings.ContainsAny(s, "/\\\x00")
}

func validateCameraID(id string) error {
	if !cameraIDRe.MatchString(id) {
		return reason.ErrBadRequest.Withf("invalid camera id[%s]", id)
	}
	return nil
}

// ValidateDate 格式 YYYY-MM-DD 且是合法日期
func ValidateDate(date string) error {
	if !dateRe.MatchString(date) {
		return reason.ErrBadRequest.Withf("invalid date[%s]", date)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return reason.ErrBadRequest.Withf("invalid date[%s]", date)
	}
	return nil
}

// ValidateHour 格式 00~23
func ValidateHour(hour string) error {
	if !hourRe.MatchString(hour) {
		return reason.ErrBadRequest.Withf("invalid hour[%s]", hour)
	}
	return nil
}

// checkParams 先检查目录穿越 (403)，再检查格式 (400)
func checkParams(cameraID, date, hour, segment string) error {
	for _, p := range []string{cameraID, date, hour, segment} {
		if hasTraversal(p) {
			return errcode.ErrForbidden.Withf("path traversal rejected")
		}
	}
	if err := validateCameraID(cameraID); err != nil {
		return err
	}
	if date != "" {
		if err := ValidateDate(date); err != nil {
			return err
		}
	}
	if hour != "" {
		if err := ValidateHour(hour); err != nil {
			return err
		}
	}
	if segment != "" && !segmentRe.MatchString(segment) {
		return reason.ErrBadRequest.Withf("invalid segment[%s]", segment)
	}
	return nil
}

// resolve 拼接路径并确认结果仍在摄像头目录之内
func (c *Core) resolve(cameraID string, parts ...string) (string, error) {
	base, err := filepath.Abs(filepath.Join(c.root, cameraID))
	if err != nil {
		return "", reason.ErrServer.Withf("%s", err.Error())
	}
	full := filepath.Join(append([]string{base}, parts...)...)
	if !within(base, full) {
		return "", errcode.ErrForbidden.Withf("path outside recording directory")
	}
	return full, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SegmentPath 返回切片文件的绝对路径，文件不存在返回 404
// 符号链接指向摄像头目录之外时返回 403
func (c *Core) SegmentPath(cameraID, date, hour, segment string) (string, error) {
	if err := checkParams(cameraID, date, hour, segment); err != nil {
		return "", err
	}
	if date == "" || hour == "" || segment == "" {
		return "", reason.ErrBadRequest.Withf("date, hour and segment are required")
	}
	full, err := c.resolve(cameraID, date, hour, segment)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errcode.ErrNotFound.Withf("segment[%s] not found", segment)
		}
		return "", reason.ErrServer.Withf("%s", err.Error())
	}
	base, err := filepath.EvalSymlinks(filepath.Dir(filepath.Dir(filepath.Dir(full))))
	if err != nil {
		return "", reason.ErrServer.Withf("%s", err.Error())
	}
	if !within(base, resolved) {
		return "", errcode.ErrForbidden.Withf("path outside recording directory")
	}
	fi, err := os.Stat(resolved)
	if err != nil || fi.IsDir() {
		return "", errcode.ErrNotFound.Withf("segment[%s] not found", segment)
	}
	return resolved, nil
}
