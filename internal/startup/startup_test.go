package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				// Ensure the variable is not set
				os.Unsetenv(tt.key)
				t.Cleanup(func() {
					os.Unsetenv(tt.key)
				})
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "POST",
		Path:   "/api/convert",
		Name:   "convert",
	}

	if route.Method != "POST" {
		t.Errorf("Expected Method=POST, got %s", route.Method)
	}
	if route.Path != "/api/convert" {
		t.Errorf("Expected Path=/api/convert, got %s", route.Path)
	}
	if route.Name != "convert" {
		t.Errorf("Expected Name=convert, got %s", route.Name)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/entries/{id}", "api/entries"},
		{"/api/workspace/download/{path:.*}", "api/workspace"},
		{"/api", "api"},
		{"/healthz", "healthz"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getRouteGroup(tt.path); got != tt.want {
				t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	router := mux.NewRouter()
	router.HandleFunc("/api/mode", noop).Methods("GET", "PUT").Name("mode")
	router.HandleFunc("/healthz", noop).Methods("GET")
	router.PathPrefix("/").HandlerFunc(noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}

	want := []RouteInfo{
		{Method: "GET", Path: "/api/mode", Name: "mode"},
		{Method: "PUT", Path: "/api/mode", Name: "mode"},
		{Method: "GET", Path: "/healthz"},
		{Method: "*", Path: "/"},
	}
	if diff := cmp.Diff(want, routes); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

var configKeys = []string{
	"CONFIG_FILE", "PORT", "METRICS_PORT", "METRICS_ENABLED", "CACHE_DIR",
	"FFMPEG_PATH", "MAX_UPLOAD_BYTES", "BUNDLE_THRESHOLD", "LOG_BUFFER_LINES",
	"MAX_ARCHIVE_DEPTH", "DEVICE_CLASS", "PRESETS_FILE", "LOG_STATIC_FILES",
	"LOG_HEALTH_CHECKS", "UPLOAD_RATE_LIMIT", "CORS_ORIGINS",
}

// clearConfigEnv blanks every config variable for the test; getEnv treats
// empty values as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestReadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := readConfig()
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}

	if diff := cmp.Diff(DefaultConfig(), *config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if config.MaxUploadBytes != 2147483648 {
		t.Errorf("Expected MaxUploadBytes=2147483648, got %d", config.MaxUploadBytes)
	}
}

func TestReadConfigFileAndEnv(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`port: "9000"
bundle_threshold: 5
max_upload_bytes: 1048576
device_class: mobile
log_health_checks: false
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")
	t.Setenv("MAX_UPLOAD_BYTES", "500MiB")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	config, err := readConfig()
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}

	if config.Port != "7000" {
		t.Errorf("Expected env PORT to win, got %s", config.Port)
	}
	if config.BundleThreshold != 5 {
		t.Errorf("Expected BundleThreshold=5 from file, got %d", config.BundleThreshold)
	}
	if config.MaxUploadBytes != 500<<20 {
		t.Errorf("Expected MaxUploadBytes=%d, got %d", 500<<20, config.MaxUploadBytes)
	}
	if config.DeviceClass != "mobile" {
		t.Errorf("Expected DeviceClass=mobile, got %s", config.DeviceClass)
	}
	if config.LogHealthChecks {
		t.Error("Expected LogHealthChecks=false from file")
	}
	if config.MetricsPort != "9090" {
		t.Errorf("Expected default MetricsPort=9090, got %s", config.MetricsPort)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, config.CORSOrigins); diff != "" {
		t.Errorf("CORSOrigins mismatch (-want +got):\n%s", diff)
	}
	if config.ConfigFile != path {
		t.Errorf("Expected ConfigFile=%s, got %s", path, config.ConfigFile)
	}
}

func TestReadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := readConfig(); err == nil {
			t.Error("Expected error for missing config file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		clearConfigEnv(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("port: [unclosed"), 0o644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		t.Setenv("CONFIG_FILE", path)
		if _, err := readConfig(); err == nil {
			t.Error("Expected error for malformed config file")
		}
	})
}

func TestReadConfigClampsInvalidValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BUNDLE_THRESHOLD", "0")
	t.Setenv("LOG_BUFFER_LINES", "-5")
	t.Setenv("MAX_ARCHIVE_DEPTH", "-1")
	t.Setenv("UPLOAD_RATE_LIMIT", "-10")

	config, err := readConfig()
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}

	if config.BundleThreshold != 3 {
		t.Errorf("Expected BundleThreshold=3, got %d", config.BundleThreshold)
	}
	if config.LogBufferLines != 5000 {
		t.Errorf("Expected LogBufferLines=5000, got %d", config.LogBufferLines)
	}
	if config.MaxArchiveDepth != 0 {
		t.Errorf("Expected MaxArchiveDepth=0, got %d", config.MaxArchiveDepth)
	}
	if config.UploadRateLimit != 0 {
		t.Errorf("Expected UploadRateLimit=0, got %d", config.UploadRateLimit)
	}
}

func TestLoadConfigCreatesSandboxes(t *testing.T) {
	clearConfigEnv(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	t.Setenv("CACHE_DIR", cacheDir)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ConverterDir != filepath.Join(cacheDir, "converter") {
		t.Errorf("Unexpected ConverterDir: %s", config.ConverterDir)
	}
	if config.WorkspaceDir != filepath.Join(cacheDir, "workspace") {
		t.Errorf("Unexpected WorkspaceDir: %s", config.WorkspaceDir)
	}
	for _, dir := range []string{config.ConverterDir, config.WorkspaceDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s to exist", dir)
		}
	}
}

func TestLoadConfigCacheDirIsFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	t.Setenv("CACHE_DIR", path)

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when CACHE_DIR is a file")
	}
}

func TestLogHelpersDoNotPanic(_ *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	router := mux.NewRouter()
	router.HandleFunc("/api/entries/{id}", noop).Methods("GET")
	router.HandleFunc("/", noop)

	LogHTTPRoutes(router, false, true)
	LogServerStarted(ServerConfig{Port: "8080", MetricsPort: "9090", MetricsEnabled: true})
	LogServerStarted(ServerConfig{Port: "8080"})
	LogShutdownInitiated("interrupt")
	LogShutdownStep("Stopping collector")
	LogShutdownStepComplete("Collector stopped")
	LogShutdownComplete()
}
