package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration. Field tags name the keys of
// the optional YAML config file; environment variables override them.
type Config struct {
	Port            string `yaml:"port"`
	MetricsPort     string `yaml:"metrics_port"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	CacheDir        string `yaml:"cache_dir"`
	FFmpegPath      string `yaml:"ffmpeg_path"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	BundleThreshold int    `yaml:"bundle_threshold"`
	LogBufferLines  int    `yaml:"log_buffer_lines"`
	MaxArchiveDepth int    `yaml:"max_archive_depth"`
	DeviceClass     string `yaml:"device_class"`
	PresetsFile     string `yaml:"presets_file"`
	LogStaticFiles  bool   `yaml:"log_static_files"`
	LogHealthChecks bool   `yaml:"log_health_checks"`
	UploadRateLimit int    `yaml:"upload_rate_limit"`

	CORSOrigins []string `yaml:"cors_origins"`

	// ConfigFile is the YAML file the values above were read from, if any.
	ConfigFile string `yaml:"-"`

	// Derived paths
	ConverterDir string `yaml:"-"`
	WorkspaceDir string `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Port:            "8080",
		MetricsPort:     "9090",
		MetricsEnabled:  true,
		CacheDir:        filepath.Join(os.TempDir(), "media-converter"),
		FFmpegPath:      "ffmpeg",
		MaxUploadBytes:  2 << 30,
		BundleThreshold: 3,
		LogBufferLines:  5000,
		LogHealthChecks: true,
		UploadRateLimit: 60,
		CORSOrigins:     []string{"*"},
	}
}

// LoadConfig loads and validates configuration from the optional
// CONFIG_FILE and the environment, then prepares the engine sandboxes.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("Configuration")

	config, err := readConfig()
	if err != nil {
		return nil, err
	}

	if config.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:         %s", config.ConfigFile)
	}
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  CACHE_DIR:           %s", config.CacheDir)
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  MAX_UPLOAD_BYTES:    %s", mediatypes.FormatBytes(config.MaxUploadBytes))
	logging.Info("  BUNDLE_THRESHOLD:    %d", config.BundleThreshold)
	logging.Info("  LOG_BUFFER_LINES:    %d", config.LogBufferLines)
	logging.Info("  MAX_ARCHIVE_DEPTH:   %s", depthString(config.MaxArchiveDepth))
	logging.Info("  DEVICE_CLASS:        %s", valueOr(config.DeviceClass, "auto"))
	logging.Info("  PRESETS_FILE:        %s", valueOr(config.PresetsFile, "built-in"))
	logging.Info("  UPLOAD_RATE_LIMIT:   %d/min", config.UploadRateLimit)
	logging.Info("  CORS_ORIGINS:        %s", strings.Join(config.CORSOrigins, ","))
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	section("Directory setup")

	cacheDir, err := filepath.Abs(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	config.CacheDir = cacheDir
	config.ConverterDir = filepath.Join(cacheDir, "converter")
	config.WorkspaceDir = filepath.Join(cacheDir, "workspace")
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	if err := ensureDirectory(cacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}

	logging.Debug("  Testing cache directory write access...")
	if err := testWriteAccess(cacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required for engine sandboxes): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	for _, dir := range []struct{ path, name string }{
		{config.ConverterDir, "converter sandbox"},
		{config.WorkspaceDir, "workspace sandbox"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s error: %w", dir.name, err)
		}
		logging.Info("  [OK] %s: %s", dir.name, dir.path)
	}

	logging.Info("  Metrics endpoint: %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// readConfig layers the YAML file named by CONFIG_FILE and then the
// environment over DefaultConfig. It performs no filesystem setup.
func readConfig() (*Config, error) {
	config := DefaultConfig()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		config.ConfigFile = path
	}

	config.Port = getEnv("PORT", config.Port)
	config.MetricsPort = getEnv("METRICS_PORT", config.MetricsPort)
	config.MetricsEnabled = getEnvBool("METRICS_ENABLED", config.MetricsEnabled)
	config.CacheDir = getEnv("CACHE_DIR", config.CacheDir)
	config.FFmpegPath = getEnv("FFMPEG_PATH", config.FFmpegPath)
	config.MaxUploadBytes = getEnvBytes("MAX_UPLOAD_BYTES", config.MaxUploadBytes)
	config.BundleThreshold = getEnvInt("BUNDLE_THRESHOLD", config.BundleThreshold)
	config.LogBufferLines = getEnvInt("LOG_BUFFER_LINES", config.LogBufferLines)
	config.MaxArchiveDepth = getEnvInt("MAX_ARCHIVE_DEPTH", config.MaxArchiveDepth)
	config.DeviceClass = getEnv("DEVICE_CLASS", config.DeviceClass)
	config.PresetsFile = getEnv("PRESETS_FILE", config.PresetsFile)
	config.LogStaticFiles = getEnvBool("LOG_STATIC_FILES", config.LogStaticFiles)
	config.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", config.LogHealthChecks)
	config.UploadRateLimit = getEnvInt("UPLOAD_RATE_LIMIT", config.UploadRateLimit)
	config.CORSOrigins = getEnvList("CORS_ORIGINS", config.CORSOrigins)

	if config.BundleThreshold < 1 {
		logging.Warn("  Invalid BUNDLE_THRESHOLD %d, using default: 3", config.BundleThreshold)
		config.BundleThreshold = 3
	}
	if config.LogBufferLines < 1 {
		logging.Warn("  Invalid LOG_BUFFER_LINES %d, using default: 5000", config.LogBufferLines)
		config.LogBufferLines = 5000
	}
	if config.MaxArchiveDepth < 0 {
		config.MaxArchiveDepth = 0
	}
	if config.UploadRateLimit < 0 {
		config.UploadRateLimit = 0
	}

	return &config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func depthString(depth int) string {
	if depth <= 0 {
		return "unbounded"
	}
	return strconv.Itoa(depth)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv
func LogMemoryConfig(result memory.ConfigResult) {
	if !result.Configured {
		logging.Info("Memory limit: not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	switch result.Source {
	case "MEMORY_LIMIT":
		logging.Info("Memory limit: container=%s, GOMEMLIMIT=%s (%.0f%%)",
			mediatypes.FormatBytes(result.ContainerLimit), mediatypes.FormatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("Memory limit: GOMEMLIMIT=%s (from %s)", mediatypes.FormatBytes(result.GoMemLimit), result.Source)
	}
}

// LogEngineSetup logs the engine sandboxes and checks that ffmpeg can run.
// The engines themselves start lazily on first use.
func LogEngineSetup(config *Config) {
	section("Engine setup")
	logging.Info("  Converter sandbox:  %s", config.ConverterDir)
	logging.Info("  Workspace sandbox:  %s", config.WorkspaceDir)

	if err := checkFFmpeg(config.FFmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Analysis and conversion will fail until FFmpeg is available")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// LogPresetCatalog logs where the preset catalog came from
func LogPresetCatalog(source string, count int) {
	logging.Info("  Presets: %d loaded from %s", count, source)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes summarizes the router. With debug logging every route is
// listed under its group, e.g. [api/workspace].
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP server setup")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("  Could not walk routes: %v", err)
	}
	logging.Info("  Routes registered: %d", len(routes))

	if logging.IsDebugEnabled() {
		sorted := append([]RouteInfo(nil), routes...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return getRouteGroup(sorted[a].Path) < getRouteGroup(sorted[b].Path)
		})
		for i, route := range sorted {
			group := getRouteGroup(route.Path)
			if i == 0 || group != getRouteGroup(sorted[i-1].Path) {
				logging.Debug("  [%s]", valueOr(group, "root"))
			}
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	logging.Info("  Access log: static files %s, health checks %s",
		onOff(logStaticFiles, "LOG_STATIC_FILES"), onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(on bool, key string) string {
	if on {
		return "on"
	}
	return "off (" + key + "=true enables)"
}

// getRouteGroup names the group a path is listed under: the first segment,
// or "api/<resource>" below /api.
func getRouteGroup(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if segments[0] == "api" && len(segments) > 1 {
		return "api/" + segments[1]
	}
	return segments[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints once both servers are up.
func LogServerStarted(config ServerConfig) {
	section("Server started")
	logging.Info("  Startup time: %v", config.StartupDuration)

	endpoints := [][2]string{{"API", fmt.Sprintf(":%s/api", config.Port)}}
	if config.MetricsEnabled {
		endpoints = append(endpoints, [2]string{"Metrics", fmt.Sprintf(":%s/metrics", config.MetricsPort)})
	}
	for _, ep := range endpoints {
		logging.Info("  %-8s http://localhost%s", ep[0]+":", ep[1])
	}
	if !config.MetricsEnabled {
		logging.Info("  Metrics: disabled")
	}
	logging.Info("  Press Ctrl+C to stop")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("Shutdown initiated (" + signal + ")")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

const rule = "------------------------------------------------------------"

// section starts a titled block of startup output.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(strings.ToUpper(title))
	logging.Info(rule)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ______
   /  |/  /__  ____/ (_)___ _   / ____/___  ____ _   __
  / /|_/ / _ \/ __  / / __ '/  / /   / __ \/ __ \ | / /
 / /  / /  __/ /_/ / / /_/ /  / /___/ /_/ / / / / |/ /
/_/  /_/\___/\__,_/_/\__,_/   \____/\____/_/ /_/|___/

------------------------------------------------------------`
	fmt.Println(banner)
	info := GetBuildInfo()
	logging.Info("  %s (commit %s, built %s)", info.Version, info.Commit, info.BuildTime)
	logging.Info("  Started: %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("System information")
	procs, cpus := runtime.GOMAXPROCS(0), runtime.NumCPU()
	logging.Info("  Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if procs < cpus {
		logging.Info("  CPUs: %d usable of %d (container limit)", procs, cpus)
	} else {
		logging.Info("  CPUs: %d", cpus)
	}

	if !logging.IsDebugEnabled() {
		return
	}
	logging.Debug("  Goroutines: %d", runtime.NumGoroutine())
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir: %s", wd)
	}
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname: %s", hostname)
	}
}

// ensureDirectory creates path if needed and fails when something other
// than a directory is already there.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", name, err)
		}
		logging.Debug("  Created %s directory: %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat %s directory: %w", name, err)
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(line))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvBytes accepts a plain byte count or a size with a unit ("2GiB",
// "500 MB").
func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := humanize.ParseBytes(value)
	if err != nil || parsed == 0 || parsed > 1<<62 {
		logging.Warn("Invalid size value for %s: %q, using default: %s", key, value, mediatypes.FormatBytes(defaultValue))
		return defaultValue
	}
	return int64(parsed)
}
