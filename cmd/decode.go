package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/core/decoder"
	"firestige.xyz/tzspd/internal/core/tzsp"
	"firestige.xyz/tzspd/plugins/parser/sip"
)

var decodeSIP bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode one TZSP datagram given as hex",
	Long: `Decode a TZSP datagram and print the header, the tag list and the
dissected frame as YAML. Spaces, colons and newlines in the hex input are
ignored.

Examples:
  tzspd decode 01000001 01 001122334455aabbccddeeff0800...
  tzspd decode --sip 01000001 01 ...   # also label SIP signaling`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}
		out, err := decodeDatagram(cmd, data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

type decodedTag struct {
	Name   string `yaml:"name"`
	Offset int    `yaml:"offset"`
	Data   string `yaml:"data,omitempty"`
}

type decodedFrame struct {
	Verdict    string      `yaml:"verdict"`
	SrcMAC     string      `yaml:"src_mac"`
	DstMAC     string      `yaml:"dst_mac"`
	LinkLen    int         `yaml:"link_len"`
	HdrLen     int         `yaml:"hdr_len"`
	IPFamily   uint8       `yaml:"ip_family,omitempty"`
	IPProto    uint8       `yaml:"ip_proto,omitempty"`
	SrcIP      string      `yaml:"src_ip,omitempty"`
	DstIP      string      `yaml:"dst_ip,omitempty"`
	SrcPort    uint16      `yaml:"src_port,omitempty"`
	DstPort    uint16      `yaml:"dst_port,omitempty"`
	TCPFlags   uint8       `yaml:"tcp_flags,omitempty"`
	Fragmented bool        `yaml:"fragmented,omitempty"`
	FragOffset int         `yaml:"frag_offset,omitempty"`
	PayloadLen int         `yaml:"payload_len"`
	Labels     core.Labels `yaml:"labels,omitempty"`
}

type decodedDatagram struct {
	Version     uint8         `yaml:"version"`
	Type        uint8         `yaml:"type"`
	Encap       uint16        `yaml:"encap"`
	Tags        []decodedTag  `yaml:"tags"`
	FrameOffset int           `yaml:"frame_offset"`
	Frame       *decodedFrame `yaml:"frame,omitempty"`
}

func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func decodeDatagram(cmd *cobra.Command, data []byte) (string, error) {
	var out decodedDatagram
	hdr, off, err := tzsp.Decode(data, func(tag tzsp.Tag) {
		out.Tags = append(out.Tags, decodedTag{
			Name:   tag.Name(),
			Offset: tag.Offset,
			Data:   hex.EncodeToString(tag.Data),
		})
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", core.Reason(err), err)
	}
	out.Version = hdr.Version
	out.Type = hdr.Type
	out.Encap = hdr.Encap
	out.FrameOffset = off

	frame := data[off:]
	msg, err := decoder.Dissect(frame, len(frame), time.Time{})
	if err != nil {
		return "", fmt.Errorf("%s: %w", core.Reason(err), err)
	}
	out.Frame = &decodedFrame{
		Verdict:    core.VerdictOf(&msg, nil).String(),
		SrcMAC:     msg.SrcMAC,
		DstMAC:     msg.DstMAC,
		LinkLen:    msg.LinkLen,
		HdrLen:     msg.HdrLen,
		IPFamily:   msg.IPFamily,
		IPProto:    msg.IPProto,
		SrcIP:      msg.SrcIP,
		DstIP:      msg.DstIP,
		SrcPort:    msg.SrcPort,
		DstPort:    msg.DstPort,
		TCPFlags:   msg.TCPFlags,
		Fragmented: msg.Fragmented,
		FragOffset: msg.FragOffset,
		PayloadLen: msg.PayloadLen(),
	}

	if decodeSIP {
		action := sip.NewSIPParser()
		if err := action.Init(map[string]any{"required": false}); err != nil {
			return "", err
		}
		if _, err := action.Handle(cmd.Context(), &msg); err != nil {
			return "", err
		}
		_ = action.Stop(cmd.Context())
		out.Frame.Labels = msg.Labels
	}

	b, err := yaml.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeSIP, "sip", false, "run the sip action on the dissected frame")
}
