package audio

import "testing"

func TestRMSSilencePCMBelowThreshold(t *testing.T) {
	pcm := make([]byte, 256) // all-zero samples: silence
	if got := rms(pcm); got >= rmsSilenceThreshold {
		t.Fatalf("rms(silence) = %v, want < %v", got, rmsSilenceThreshold)
	}
}

func TestRMSLoudPCMAboveThreshold(t *testing.T) {
	pcm := make([]byte, 256)
	for i := 0; i < len(pcm); i += 2 {
		// loud square wave alternating +/- 20000
		v := int16(20000)
		if (i/2)%2 == 1 {
			v = -20000
		}
		pcm[i] = byte(uint16(v))
		pcm[i+1] = byte(uint16(v) >> 8)
	}
	if got := rms(pcm); got < rmsSilenceThreshold {
		t.Fatalf("rms(loud) = %v, want >= %v", got, rmsSilenceThreshold)
	}
}

