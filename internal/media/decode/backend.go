package decode

import "runtime"

// Backend mirrors encode.Backend: the decoder ladder walks the same named
// hardware families, in the same preference order, except that it has no
// AMF rung, and resolves to the matching decoder element rather than an
// encoder.
type Backend string

const (
	BackendNVENC        Backend = "nvenc"
	BackendD3D11VA      Backend = "d3d11va"
	BackendDXVA2        Backend = "dxva2"
	BackendQSV          Backend = "qsv"
	BackendVAAPI        Backend = "vaapi"
	BackendVideoToolbox Backend = "videotoolbox"
	BackendV4L2M2M      Backend = "v4l2m2m"
	BackendRKMPP        Backend = "rkmpp"
	BackendSoftware     Backend = "software"
)

var gstElement = map[Backend]string{
	BackendNVENC:        "nvh264dec",
	BackendD3D11VA:      "d3d11h264dec",
	BackendDXVA2:        "mfh264dec",
	BackendQSV:          "msdkh264dec",
	BackendVAAPI:        "vah264dec",
	BackendVideoToolbox: "vtdec_hw",
	BackendV4L2M2M:      "v4l2h264dec",
	BackendRKMPP:        "mppvideodec",
	BackendSoftware:     "avdec_h264",
}

func ladder() []Backend {
	if runtime.GOOS == "darwin" {
		return []Backend{BackendVideoToolbox, BackendSoftware}
	}
	return []Backend{
		BackendNVENC, BackendD3D11VA, BackendDXVA2, BackendQSV,
		BackendVAAPI, BackendV4L2M2M, BackendRKMPP, BackendSoftware,
	}
}
