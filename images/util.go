package images

import (
	"crypto/md5"
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat to verify idempotency.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for an empty Mat.
//
// Example:
//
// ```go
//
//	before := ComputeMatChecksum(result.Visualization)
//	fmt.Printf("overlay checksum: %s\n", before)
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "unreadable"
	}
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// MatSize returns the size of a Mat as a point (X = columns, Y = rows).
func MatSize(mat gocv.Mat) image.Point {
	return image.Pt(mat.Cols(), mat.Rows())
}

// ToGray converts a BGR, BGRA or single-channel frame into a single-channel
// intensity image using the standard luminance weights.
//
// Arguments:
//   - src: The frame to convert. It is never modified.
//   - dst: Destination Mat, reallocated as CV_8UC1 if needed.
//
// Returns:
//   - error if the channel layout is not supported.
func ToGray(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return errors.New("cannot convert an empty frame")
	}
	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 3:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		return errors.Errorf("unsupported channel count %d", src.Channels())
	}
	return nil
}

// CountForeground returns the number of non-zero cells in a mask.
func CountForeground(mask gocv.Mat) int {
	if mask.Empty() {
		return 0
	}
	return gocv.CountNonZero(mask)
}
