package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"producer/internal/domain"
	"producer/internal/infra"
)

const downloadTimeout = 120 * time.Second

// EncoderSettings controls the ffmpeg invocation that produces the final
// vertical artifact.
type EncoderSettings struct {
	FFmpegBin  string  `yaml:"ffmpeg_bin"`
	FontFile   string  `yaml:"font_file"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FontSize   int     `yaml:"font_size"`
	TextY      int     `yaml:"text_y"`
	BoxOpacity float64 `yaml:"box_opacity"`
	Preset     string  `yaml:"preset"`
	MaxSeconds int     `yaml:"max_seconds"`
	TempDir    string  `yaml:"temp_dir"`
}

// ApplyDefaults fills zero-valued settings with the standard 9:16 profile.
func (s *EncoderSettings) ApplyDefaults() {
	if s.FFmpegBin == "" {
		s.FFmpegBin = "ffmpeg"
	}
	if s.Width <= 0 {
		s.Width = 1080
	}
	if s.Height <= 0 {
		s.Height = 1920
	}
	if s.FontSize <= 0 {
		s.FontSize = 80
	}
	if s.TextY <= 0 {
		s.TextY = 150
	}
	if s.BoxOpacity <= 0 {
		s.BoxOpacity = 0.5
	}
	if s.Preset == "" {
		s.Preset = "fast"
	}
	if s.MaxSeconds <= 0 {
		s.MaxSeconds = 8
	}
}

// ComposeRequest describes one composition: a source asset (local path or
// remote URL), the overlay text lines and the output artifact path.
type ComposeRequest struct {
	SourceRef  string
	TextLines  []string
	OutputPath string
}

// DownloadAuth attaches a header to downloads whose host matches the suffix.
// Some providers serve generated assets only with the API key replayed.
type DownloadAuth struct {
	HostSuffix string
	Header     string
	Value      string
}

// Options configures a Composer.
type Options struct {
	Settings   EncoderSettings
	Auth       []DownloadAuth
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Composer turns a raw source asset into the final vertical artifact: scale
// and center-crop to the target frame, overlay the text lines, encode. Remote
// sources are fetched to a transient file that is removed on every exit path.
type Composer struct {
	settings EncoderSettings
	auth     []DownloadAuth
	client   *http.Client
	logger   infra.Logger

	// run executes the encoder process and returns its combined output.
	// Swappable so tests can fake the external binary.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewComposer constructs a Composer with defaulted settings.
func NewComposer(opts Options) *Composer {
	settings := opts.Settings
	settings.ApplyDefaults()
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Composer{
		settings: settings,
		auth:     opts.Auth,
		client:   client,
		logger:   logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Compose produces the final artifact for one request. A non-zero encoder
// exit surfaces as ErrComposition with the tail of the diagnostic output.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) error {
	if req.SourceRef == "" {
		return fmt.Errorf("%w: empty source ref", domain.ErrComposition)
	}
	if req.OutputPath == "" {
		return fmt.Errorf("%w: empty output path", domain.ErrComposition)
	}

	input := req.SourceRef
	if isRemote(req.SourceRef) {
		tmp, err := c.download(ctx, req.SourceRef)
		if err != nil {
			return err
		}
		defer func() {
			_ = os.Remove(tmp)
		}()
		input = tmp
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return fmt.Errorf("%w: ensure output directory: %v", domain.ErrComposition, err)
	}

	args := c.encoderArgs(input, req.TextLines, req.OutputPath)
	out, err := c.run(ctx, c.settings.FFmpegBin, args...)
	if err != nil {
		c.logger.Error().Err(err).Str("output", req.OutputPath).Msg("media: encoder failed")
		return fmt.Errorf("%w: %s: %v", domain.ErrComposition, tailOf(out), err)
	}
	c.logger.Info().Str("output", req.OutputPath).Msg("media: artifact composed")
	return nil
}

// encoderArgs builds the ffmpeg argument list: scale height-first keeping
// aspect ratio, center-crop to the vertical frame, draw the overlay text in a
// translucent box, encode with a bounded duration.
func (c *Composer) encoderArgs(input string, textLines []string, output string) []string {
	filters := []string{
		fmt.Sprintf("scale=-1:%d", c.settings.Height),
		fmt.Sprintf("crop=%d:%d:0:0", c.settings.Width, c.settings.Height),
	}
	text := SanitizeOverlayText(strings.Join(textLines, " "))
	if text != "" {
		draw := fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=%d:box=1:boxcolor=black@%.1f:boxborderw=10",
			text, c.settings.FontSize, c.settings.TextY, c.settings.BoxOpacity,
		)
		if c.settings.FontFile != "" {
			draw += fmt.Sprintf(":fontfile=%s", c.settings.FontFile)
		}
		filters = append(filters, draw)
	}
	return []string{
		"-y",
		"-i", input,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-preset", c.settings.Preset,
		"-c:a", "copy",
		"-t", fmt.Sprintf("%d", c.settings.MaxSeconds),
		output,
	}
}

// download fetches a remote asset into a transient file and returns its path.
// The file is removed here on any failure; the caller owns removal on success.
func (c *Composer) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create download request: %v", domain.ErrComposition, err)
	}
	if u, err := url.Parse(rawURL); err == nil {
		for _, a := range c.auth {
			if a.HostSuffix != "" && strings.HasSuffix(u.Host, a.HostSuffix) {
				req.Header.Set(a.Header, a.Value)
			}
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download asset: %v", domain.ErrComposition, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: download asset: status %d", domain.ErrComposition, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.settings.TempDir, "raw_*.mp4")
	if err != nil {
		return "", fmt.Errorf("%w: create transient file: %v", domain.ErrComposition, err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write transient file: %v", domain.ErrComposition, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: close transient file: %v", domain.ErrComposition, err)
	}
	c.logger.Debug().Str("url", rawURL).Str("path", tmp.Name()).Msg("media: asset downloaded")
	return tmp.Name(), nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// SanitizeOverlayText normalizes the overlay text and strips characters that
// are metacharacters in the encoder's drawtext filter syntax.
func SanitizeOverlayText(text string) string {
	text = norm.NFC.String(text)
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '\'', ':', '\\', ',', ';', '=', '[', ']', '%':
			continue
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tailOf(out []byte) string {
	s := strings.TrimSpace(string(out))
	if s == "" {
		return "encoder produced no diagnostic output"
	}
	const limit = 400
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
