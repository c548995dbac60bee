package capture

// ComputeEncodeSize implements the adaptive-resolution selection the
// client runs once per session, on receiving a connect envelope's
// control_max_width/control_max_height fields:
//   - -1 on either field disables adaptation; use the local screen size.
//   - if the local screen already fits the controller's max area, use it.
//   - otherwise scale down preserving aspect ratio, whichever dimension
//     saturates first determining the scale.
// The result is always rounded down to a multiple of 16, with a floor of 16.
func ComputeEncodeSize(localW, localH, maxW, maxH int) (w, h int) {
	if maxW == -1 || maxH == -1 {
		return roundDown16(localW), roundDown16(localH)
	}
	if localW <= maxW && localH <= maxH {
		return roundDown16(localW), roundDown16(localH)
	}

	scaleW := float64(maxW) / float64(localW)
	scaleH := float64(maxH) / float64(localH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w = roundDown16(int(float64(localW) * scale))
	h = roundDown16(int(float64(localH) * scale))
	return w, h
}

func roundDown16(v int) int {
	if v < 16 {
		return 16
	}
	return v - v%16
}
