package box

import (
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"

	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
)

// Decoder config of an MPEG-4 visual simple profile stream, 176x144:
// visual object sequence, visual object, video object and video object layer headers.
var mp4vDecoderConfig = []byte{
	0x00, 0x00, 0x01, 0xB0, 0x03,
	0x00, 0x00, 0x01, 0xB5, 0x09,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x01, 0x20, 0x00, 0x84, 0x40, 0x07, 0xA8, 0x2C, 0x20, 0x90, 0xA3, 0x1F,
}

var vendorPV = [4]byte{'p', 'v', 'm', 'm'}

// StsdParams carries what is known about the track when the sample
// description has to be synthesized.
type StsdParams struct {
	Width, Height uint16
	Channels      uint16
	SampleRate    uint32
	// SPS and PPS are complete NAL units. Defaults are generated when empty.
	SPS, PPS []byte
}

// AddStsd adds a sample description for c under stbl.
func (t *Tree) AddStsd(stbl NodeID, c codec.CodecType, p StsdParams) (NodeID, error) {
	switch c {
	case codec.CodecAvc:
		return t.AvcStsd(stbl, p.Width, p.Height, p.SPS, p.PPS)
	case codec.CodecMp4v:
		return t.Mp4vStsd(stbl, p.Width, p.Height), nil
	case codec.CodecS263:
		return t.H263Stsd(stbl, p.Width, p.Height), nil
	case codec.CodecMjpg:
		return t.JpegStsd(stbl, p.Width, p.Height), nil
	case codec.CodecMp4a:
		return t.Mp4aStsd(stbl, p.Channels, p.SampleRate)
	case codec.CodecAmr:
		return t.AmrStsd(stbl), nil
	}
	return NoParent, fmt.Errorf("no sample description for codec %s", c)
}

// AvcStsd builds stsd > avc1 > avcC. The parameter sets only describe a
// decodable stream, display size comes from the sample entry.
func (t *Tree) AvcStsd(stbl NodeID, width, height uint16, sps, pps []byte) (NodeID, error) {
	var err error
	if len(sps) == 0 {
		if sps, err = codec.DefaultSPS().Marshal(); err != nil {
			return NoParent, err
		}
	}
	if len(pps) == 0 {
		if pps, err = codec.DefaultPPS().Marshal(); err != nil {
			return NoParent, err
		}
	}
	stsd := t.AddSampleDescription(stbl)
	entry := t.AddEntry(stsd, TypeAVC1, NewVisualSampleEntry(width, height))
	t.Add(entry, TypeAVCC, NewAvcConfiguration([][]byte{sps}, [][]byte{pps}))
	return stsd, nil
}

func (t *Tree) Mp4vStsd(stbl NodeID, width, height uint16) NodeID {
	stsd := t.AddSampleDescription(stbl)
	entry := t.AddEntry(stsd, TypeMP4V, NewVisualSampleEntry(width, height))
	t.Add(entry, TypeESDS, &ESDescriptor{
		ESID:                1,
		ObjectType:          ObjectTypeVisual,
		StreamType:          StreamTypeVisual,
		DecoderSpecificInfo: mp4vDecoderConfig,
	})
	return stsd
}

func (t *Tree) H263Stsd(stbl NodeID, width, height uint16) NodeID {
	stsd := t.AddSampleDescription(stbl)
	entry := t.AddEntry(stsd, TypeS263, NewVisualSampleEntry(width, height))
	t.Add(entry, TypeD263, &D263{Vendor: vendorPV, Level: 10})
	return stsd
}

func (t *Tree) JpegStsd(stbl NodeID, width, height uint16) NodeID {
	stsd := t.AddSampleDescription(stbl)
	t.AddEntry(stsd, TypeJPEG, NewVisualSampleEntry(width, height))
	return stsd
}

// Mp4aStsd describes AAC-LC, 44.1kHz stereo unless told otherwise.
func (t *Tree) Mp4aStsd(stbl NodeID, channels uint16, sampleRate uint32) (NodeID, error) {
	if channels == 0 {
		channels = 2
	}
	if sampleRate == 0 {
		sampleRate = 44100
	}
	asc := mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   int(sampleRate),
		ChannelCount: int(channels),
	}
	dsi, err := asc.Marshal()
	if err != nil {
		return NoParent, err
	}
	stsd := t.AddSampleDescription(stbl)
	entry := t.AddEntry(stsd, TypeMP4A, NewAudioSampleEntry(channels, sampleRate))
	t.Add(entry, TypeESDS, &ESDescriptor{
		ESID:                2,
		ObjectType:          ObjectTypeAudio,
		StreamType:          StreamTypeAudio,
		DecoderSpecificInfo: dsi,
	})
	return stsd, nil
}

// AmrStsd describes narrow band AMR, all modes allowed.
func (t *Tree) AmrStsd(stbl NodeID) NodeID {
	stsd := t.AddSampleDescription(stbl)
	entry := t.AddEntry(stsd, TypeSAMR, NewAudioSampleEntry(1, 8000))
	t.Add(entry, TypeDAMR, &AmrSpecific{Vendor: vendorPV, ModeSet: 0x81FF, FramesPerSample: 1})
	return stsd
}
