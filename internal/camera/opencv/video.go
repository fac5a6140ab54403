package opencv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"postureguard/internal/camera"
	"postureguard/internal/posture"
)

// VideoSource reads frames from a local device index ("0") or a stream URL
// such as an IP camera's http/rtsp address.
type VideoSource struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func OpenVideoSource(addr string, width, height int) (*VideoSource, error) {
	var device interface{} = strings.TrimSpace(addr)
	if id, err := strconv.Atoi(strings.TrimSpace(addr)); err == nil {
		device = id
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", addr, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open video capture %s: %w", addr, posture.ErrSourceUnavailable)
	}

	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	// keep the driver from queueing stale frames
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	return &VideoSource{vc: vc, mat: gocv.NewMat()}, nil
}

func (s *VideoSource) Read(f *camera.Frame) error {
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return camera.ErrNoFrame
	}
	f.CapturedAt = time.Now()
	f.Width = s.mat.Cols()
	f.Height = s.mat.Rows()
	f.Data = s.mat.ToBytes()
	return nil
}

func (s *VideoSource) Close() error {
	s.mat.Close()
	return s.vc.Close()
}

// Opener adapts OpenVideoSource to camera.Opener.
func Opener(width, height int) camera.Opener {
	return func(addr string) (camera.Source, error) {
		src, err := OpenVideoSource(addr, width, height)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}
