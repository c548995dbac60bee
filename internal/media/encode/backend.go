package encode

import "runtime"

// Backend is one rung of the hardware H.264 encoder ladder.
type Backend string

const (
	BackendNVENC        Backend = "nvenc"
	BackendD3D11VA      Backend = "d3d11va"
	BackendDXVA2        Backend = "dxva2"
	BackendQSV          Backend = "qsv"
	BackendAMF          Backend = "amf"
	BackendVAAPI        Backend = "vaapi"
	BackendVideoToolbox Backend = "videotoolbox"
	BackendV4L2M2M      Backend = "v4l2m2m"
	BackendRKMPP        Backend = "rkmpp"
	BackendSoftware     Backend = "software"
)

// gstElement maps a Backend to the GStreamer element name that implements
// it. Once a backend is chosen, the element it names is used for the
// session's lifetime.
var gstElement = map[Backend]string{
	BackendNVENC:        "nvh264enc",
	BackendD3D11VA:      "d3d11h264enc",
	BackendDXVA2:        "mfh264enc",
	BackendQSV:          "msdkh264enc",
	BackendAMF:          "amfh264enc",
	BackendVAAPI:        "vah264enc",
	BackendVideoToolbox: "vtenc_h264_hw",
	BackendV4L2M2M:      "v4l2h264enc",
	BackendRKMPP:        "mpph264enc",
	BackendSoftware:     "x264enc",
}

// ladder is the preference order the backend list describes, for the
// current OS. videotoolbox only makes sense on darwin; the OS-specific
// hardware backends are tried first, software always last.
func ladder() []Backend {
	if runtime.GOOS == "darwin" {
		return []Backend{BackendVideoToolbox, BackendSoftware}
	}
	return []Backend{
		BackendNVENC, BackendD3D11VA, BackendDXVA2, BackendQSV, BackendAMF,
		BackendVAAPI, BackendV4L2M2M, BackendRKMPP, BackendSoftware,
	}
}
