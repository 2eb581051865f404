package carve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/simsong/bulk-extractor-sub001/pkg/config"
)

type DefaultYaml string

type PluginMeta struct {
	Name        string
	Version     string // plugin version
	Type        reflect.Type
	defaultYaml DefaultYaml // embedded defaults
}

func (plugin *PluginMeta) Init(s *Server, userConfig map[string]any) *Plugin {
	instance := reflect.New(plugin.Type).Interface().(IPlugin)
	p := reflect.ValueOf(instance).Elem().FieldByName("Plugin").Addr().Interface().(*Plugin)
	p.handler = instance
	p.Meta = plugin
	p.server = s
	p.Logger = s.Logger.With("plugin", plugin.Name)
	s.Plugins = append(s.Plugins, p)
	if os.Getenv(strings.ToUpper(plugin.Name)+"_ENABLE") == "false" {
		p.Disabled = true
		p.Warn("disabled by env")
		return p
	}
	p.Config.Parse(instance, strings.ToUpper(plugin.Name))
	if plugin.defaultYaml != "" {
		var defaultConf map[string]any
		if err := yaml.Unmarshal([]byte(plugin.defaultYaml), &defaultConf); err != nil {
			p.Error("parsing default config", "error", err)
		} else {
			p.Config.ParseDefaultYaml(defaultConf)
		}
	}
	p.Config.ParseUserFile(userConfig)
	if userConfig["enable"] == false {
		p.Disabled = true
	}
	if p.Disabled {
		p.Warn("plugin disabled")
		return p
	}
	if err := instance.OnInit(); err != nil {
		p.Error("init", "error", err)
		p.Disabled = true
		return p
	}
	p.Debug("config", "values", p.Config.GetMap())
	p.Info("init", "version", plugin.Version)
	return p
}

type iPlugin interface {
	nothing()
}

// IPlugin is implemented by every scanner. OnFragment is called from
// several workers at once and must not keep fragment data after returning.
type IPlugin interface {
	OnInit() error
	OnFragment(*Fragment) error
}

var plugins []PluginMeta

func InstallPlugin[C iPlugin](options ...any) error {
	var c *C
	t := reflect.TypeOf(c).Elem()
	meta := PluginMeta{
		Name: strings.TrimSuffix(t.Name(), "Plugin"),
		Type: t,
	}

	_, pluginFilePath, _, _ := runtime.Caller(1)
	configDir := filepath.Dir(pluginFilePath)

	if _, after, found := strings.Cut(configDir, "@"); found {
		meta.Version = after
	} else {
		meta.Version = pluginFilePath
	}
	for _, option := range options {
		switch v := option.(type) {
		case DefaultYaml:
			meta.defaultYaml = v
		}
	}
	plugins = append(plugins, meta)
	return nil
}

type Plugin struct {
	*slog.Logger
	Disabled bool
	Meta     *PluginMeta
	config.Config
	handler IPlugin
	server  *Server
}

func (Plugin) nothing() {

}

func (p *Plugin) OnInit() error {
	return nil
}

// Recorder is the sink repairs are reported to.
func (p *Plugin) Recorder() Recorder {
	return p.server.Recorder
}

// OutDir is where repaired files are written.
func (p *Plugin) OutDir() string {
	return p.server.Config.OutDir
}

func (p *Plugin) fix(frag *Fragment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			p.Error("fragment", "pos", frag.Position(), "error", err)
		}
	}()
	return p.handler.OnFragment(frag)
}
