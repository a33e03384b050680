package config

// Root is the main yaml config object
type Root struct {
	Convert *Convert       `yaml:"convert"`
	Torrent *TorrentGlobal `yaml:"torrent"`
	HTTP    *HTTPGlobal    `yaml:"http"`
	Watch   *Watch         `yaml:"watch"`
	Log     *Log           `yaml:"log"`

	Entries []*Entry `yaml:"entries"`
}

type Log struct {
	Debug      bool   `yaml:"debug"`
	MaxBackups int    `yaml:"max_backups"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	Path       string `yaml:"path"`
}

// Convert holds the per-item conversion policy.
type Convert struct {
	// Timeout is the wall-clock budget of one metadata polling round,
	// as a Go duration string.
	Timeout string `yaml:"timeout,omitempty"`
	// Force marks an entry permanently failed on conversion error
	// instead of skipping it.
	Force bool `yaml:"force,omitempty"`
	// NumTry is the number of metadata polling rounds before giving up.
	NumTry int `yaml:"num_try,omitempty"`
	// UseDHT defaults to true; a pointer keeps "absent" distinct from
	// an explicit false.
	UseDHT *bool `yaml:"use_dht,omitempty"`
	// HTTPProxy routes tracker traffic through a proxy. Credentials in
	// the URI enable proxy auth and force anonymous mode.
	HTTPProxy string `yaml:"http_proxy,omitempty"`
	// Dir overrides the output directory. Defaults to a "converted"
	// folder next to the config file.
	Dir         string `yaml:"dir,omitempty"`
	TrackersURL string `yaml:"trackers_url,omitempty"`
}

type TorrentGlobal struct {
	ListenPort       int      `yaml:"listen_port,omitempty"`
	IP               string   `yaml:"ip,omitempty"`
	DisableIPv6      bool     `yaml:"disable_ipv6,omitempty"`
	DisableTCP       bool     `yaml:"disable_tcp,omitempty"`
	DisableUTP       bool     `yaml:"disable_utp,omitempty"`
	NoPortForwarding bool     `yaml:"no_port_forwarding,omitempty"`
	BootstrapNodes   []string `yaml:"bootstrap_nodes,omitempty"`
	// ScratchFolder holds the session piece cache and the conversion
	// index. Nothing of value lives there between runs.
	ScratchFolder     string  `yaml:"scratch_folder,omitempty"`
	DownloadLimitMbit float64 `yaml:"download_limit_mbit,omitempty"`
	UploadLimitMbit   float64 `yaml:"upload_limit_mbit,omitempty"`
}

type HTTPGlobal struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	IP      string `yaml:"ip"`
}

// Watch enables converting magnet files dropped into a folder.
type Watch struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Entry is one pipeline item carrying a magnet URI to convert.
type Entry struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

const scratchFolder = "./magnetconv-data"

const defaultTrackersURL = "https://raw.githubusercontent.com/ngosang/trackerslist/master/trackers_all_ip.txt"

func AddDefaults(r *Root) *Root {
	if r.Convert == nil {
		r.Convert = &Convert{}
	}

	if r.Convert.UseDHT == nil {
		useDHT := true
		r.Convert.UseDHT = &useDHT
	}

	if r.Convert.Timeout == "" {
		r.Convert.Timeout = "30s"
	}

	if r.Convert.NumTry == 0 {
		r.Convert.NumTry = 1
	}

	if r.Convert.TrackersURL == "" {
		r.Convert.TrackersURL = defaultTrackersURL
	}

	if r.Torrent == nil {
		r.Torrent = &TorrentGlobal{}
	}

	if r.Torrent.ScratchFolder == "" {
		r.Torrent.ScratchFolder = scratchFolder
	}

	if r.HTTP == nil {
		r.HTTP = &HTTPGlobal{}
	}

	if r.HTTP.IP == "" {
		r.HTTP.IP = "0.0.0.0"
	}

	if r.HTTP.Port == 0 {
		r.HTTP.Port = 4444
	}

	if r.Log == nil {
		r.Log = &Log{}
	}

	return r
}
