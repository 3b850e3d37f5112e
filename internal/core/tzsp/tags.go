package tzsp

// Tag types.
const (
	TagPadding            = 0
	TagEnd                = 1
	TagRawRSSI            = 10
	TagSNR                = 11
	TagDataRate           = 12
	TagTimestamp          = 13
	TagContentionFree     = 15
	TagDecrypted          = 16
	TagFCSError           = 17
	TagRXChannel          = 18
	TagPacketCount        = 40
	TagRXFrameLength      = 41
	TagWLANRadioHdrSerial = 60
)

var tagNames = map[uint8]string{
	TagPadding:            "PADDING",
	TagEnd:                "END",
	TagRawRSSI:            "RAW_RSSI",
	TagSNR:                "SNR",
	TagDataRate:           "DATA_RATE",
	TagTimestamp:          "TIMESTAMP",
	TagContentionFree:     "CONTENTION_FREE",
	TagDecrypted:          "DECRYPTED",
	TagFCSError:           "FCS_ERROR",
	TagRXChannel:          "RX_CHANNEL",
	TagPacketCount:        "PACKET_COUNT",
	TagRXFrameLength:      "RX_FRAME_LENGTH",
	TagWLANRadioHdrSerial: "WLAN_RADIO_HDR_SERIAL",
}

// TagName returns the symbolic name of a tag type, or "<UNKNOWN>".
func TagName(t uint8) string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "<UNKNOWN>"
}
