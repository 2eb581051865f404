package plugin_mp4

import (
	"fmt"

	carve "github.com/simsong/bulk-extractor-sub001"
	"github.com/simsong/bulk-extractor-sub001/pkg"
	mp4 "github.com/simsong/bulk-extractor-sub001/plugin/mp4/pkg"
)

type MP4Plugin struct {
	carve.Plugin
	MinFragment int    `desc:"fragments shorter than this are skipped"`
	MaxFragment int    `default:"0" desc:"bytes of a fragment looked at, 0 means up to the page end"`
	Verify      bool   `default:"false" desc:"decode repaired files before writing them"`
	InBand      bool   `desc:"take SPS/PPS from mdat when stsd is lost"`
	Name        string `default:"mp4" desc:"recorder name used in output file names"`
}

const defaultConfig carve.DefaultYaml = `minfragment: 64
inband: true`

var _ = carve.InstallPlugin[MP4Plugin](defaultConfig)

func (p *MP4Plugin) OnInit() error {
	if p.MaxFragment > 0 && p.MaxFragment < p.MinFragment {
		return fmt.Errorf("maxfragment %d below minfragment %d", p.MaxFragment, p.MinFragment)
	}
	return nil
}

// OnFragment repairs frag with a fixer of its own.
func (p *MP4Plugin) OnFragment(frag *carve.Fragment) error {
	if len(frag.Data) < p.MinFragment {
		return pkg.ErrSkipped
	}
	if p.MaxFragment > 0 && len(frag.Data) > p.MaxFragment {
		clamped := *frag
		clamped.Data = frag.Data[:p.MaxFragment]
		frag = &clamped
	}
	fixer := mp4.NewFixer(mp4.Config{
		Name:   p.Name,
		OutDir: p.OutDir(),
		InBand: p.InBand,
		Verify: p.Verify,
	}, p.Logger, p.Recorder())
	_, err := fixer.DoFix(frag)
	return err
}
