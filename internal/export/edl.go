package export

import (
	"fmt"
	"math"
	"strings"
)

const defaultFrameRate = 30.0

// GenerateEDL renders a CMX3600-style list. Record timecodes run back to back
// starting at zero.
func GenerateEDL(clips []EDLClip, title string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	fps := int(math.Round(frameRate))

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordFrames := 0
	for i, clip := range clips {
		srcIn := toFrames(clip.Start, fps)
		srcOut := toFrames(clip.End, fps)
		length := srcOut - srcIn

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				timecode(srcIn, fps), timecode(srcOut, fps),
				timecode(recordFrames, fps), timecode(recordFrames+length, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* SOURCE FILE:  %s", clip.MediaPath),
		)
		recordFrames += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func toFrames(seconds float64, fps int) int {
	if seconds < 0 {
		seconds = 0
	}
	return int(math.Round(seconds * float64(fps)))
}

func timecode(totalFrames, fps int) string {
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
