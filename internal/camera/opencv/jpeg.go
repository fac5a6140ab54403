package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"postureguard/internal/camera"
)

// EncodeJPEG compresses a BGR frame for alert snapshots.
func EncodeJPEG(f *camera.Frame) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("frame %d to mat: %w", f.Seq, err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	defer buf.Close()

	// the native buffer is freed on Close
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
