// shimctl is a CLI tool for exercising a running drmshim harness.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	shimctl negotiate -shim URL -key-system KS [-robustness LEVEL]
//	shimctl license -shim URL -path PATH [-surface fetch|xhr|channel] [-data STR | -file PATH]
//	shimctl device -shim URL [-ua UA]
//	shimctl service -shim URL -uri URI
//
// Examples:
//
//	shimctl negotiate -shim http://localhost:8080 -key-system com.microsoft.playready -robustness HW_SECURE_ALL
//	shimctl license -shim http://localhost:8080 -path /playready-license/acquire -surface xhr -file challenge.bin -o license.bin
//	KS=$(shimctl negotiate -shim http://localhost:8080 -header '"com.microsoft.playready", "org.w3.clearkey"' -q)
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	shimURL string
	quiet   bool
	noColor bool
	verbose bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "negotiate":
		runNegotiate(args)
	case "license":
		runLicense(args)
	case "device":
		runDevice(args)
	case "service":
		runService(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `shimctl - drmshim harness test tool

Usage:
  shimctl <command> [options]

Commands:
  negotiate  Request key system access through the negotiation shim
  license    Send a license request through one of the request surfaces
  device     Show the emulated device identity
  service    Call an emulated system service

Examples:
  # Ask for PlayReady at hardware robustness and see what the device grants
  shimctl negotiate -shim http://localhost:8080 -key-system com.microsoft.playready -robustness HW_SECURE_ALL

  # Send a challenge through the XHR surface and save the license
  shimctl license -shim http://localhost:8080 -path /playready-license/acquire -surface xhr -file challenge.bin -o license.bin

  # Show the user agent an app would see
  shimctl device -shim http://localhost:8080 -ua "Mozilla/5.0"

Run 'shimctl <command> -h' for command-specific options.
`)
}

func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&shimURL, "shim", "http://localhost:8080", "drmshim base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

// =============================================================================
// NEGOTIATE COMMAND
// =============================================================================

func runNegotiate(args []string) {
	fs := flag.NewFlagSet("negotiate", flag.ExitOnError)
	commonFlags(fs)
	var keySystems, header, robustness, contentType string
	fs.StringVar(&keySystems, "key-system", "", "Key system, or comma-separated key systems in preference order")
	fs.StringVar(&header, "header", "", "Send key systems as a DRM-Key-Systems structured header instead")
	fs.StringVar(&robustness, "robustness", "", "Video robustness of the requested configuration (omit for the default template)")
	fs.StringVar(&contentType, "content-type", `video/mp4; codecs="avc1.42E01E"`, "Video content type (used with -robustness)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shimctl negotiate (-key-system KS | -header VALUE) [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	if keySystems == "" && header == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{}
	if keySystems != "" {
		var list []string
		for _, ks := range strings.Split(keySystems, ",") {
			if ks = strings.TrimSpace(ks); ks != "" {
				list = append(list, ks)
			}
		}
		reqBody["key_systems"] = list
	}
	if robustness != "" {
		reqBody["configurations"] = []map[string]interface{}{
			{
				"initDataTypes": []string{"cenc"},
				"videoCapabilities": []map[string]interface{}{
					{"contentType": contentType, "robustness": robustness},
				},
			},
		}
	}

	headers := map[string]string{}
	if header != "" {
		headers["DRM-Key-Systems"] = header
	}

	resp, err := doJSON("POST", "/v1/negotiate", reqBody, headers)
	if err != nil {
		fatal("Negotiation failed: %v", err)
	}

	keySystem, _ := resp["key_system"].(string)
	if quiet {
		fmt.Println(keySystem)
		return
	}
	printSuccess("Access granted")
	fmt.Printf("  Key system: %s%s%s\n", colorCyan, keySystem, colorReset)
	if cfg, ok := resp["configuration"].(map[string]interface{}); ok {
		if caps, ok := cfg["videoCapabilities"].([]interface{}); ok {
			for _, c := range caps {
				if capMap, ok := c.(map[string]interface{}); ok {
					r, _ := capMap["robustness"].(string)
					if r == "" {
						r = "<unset>"
					}
					fmt.Printf("  Video robustness: %s%s%s\n", colorGreen, r, colorReset)
				}
			}
		}
	}
}

// =============================================================================
// LICENSE COMMAND
// =============================================================================

func runLicense(args []string) {
	fs := flag.NewFlagSet("license", flag.ExitOnError)
	commonFlags(fs)
	var path, query, surface, method, data, file, out string
	fs.StringVar(&path, "path", "", "License server path, e.g. /playready-license/acquire (required)")
	fs.StringVar(&query, "query", "", "Raw query string forwarded to the license server")
	fs.StringVar(&surface, "surface", "fetch", "Request surface: fetch, xhr or channel")
	fs.StringVar(&method, "method", "POST", "HTTP method")
	fs.StringVar(&data, "data", "", "Challenge body as a string")
	fs.StringVar(&file, "file", "", "Read the challenge body from a file")
	fs.StringVar(&out, "o", "", "Write the license body to a file instead of stdout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shimctl license -path PATH [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	if path == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := []byte(data)
	if file != "" {
		var err error
		body, err = os.ReadFile(file)
		if err != nil {
			fatal("Reading challenge: %v", err)
		}
	}

	params := url.Values{"surface": {surface}}
	target := "/v1/license/" + strings.TrimPrefix(path, "/") + "?" + params.Encode()
	if query != "" {
		target += "&" + query
	}

	status, respHeader, respBody, err := doRequest(method, target, body, map[string]string{
		"Content-Type": "application/octet-stream",
	})
	if err != nil {
		fatal("License request failed: %v", err)
	}
	if status >= 400 {
		fatal("HTTP %d: %s", status, string(respBody))
	}

	if out != "" {
		if err := os.WriteFile(out, respBody, 0o644); err != nil {
			fatal("Writing license: %v", err)
		}
	}
	if quiet {
		if out == "" {
			os.Stdout.Write(respBody)
		}
		return
	}
	printSuccess("License received")
	fmt.Printf("  Surface: %s%s%s\n", colorCyan, respHeader.Get("X-DRM-Shim-Surface"), colorReset)
	fmt.Printf("  Size: %d bytes\n", len(respBody))
	if out != "" {
		fmt.Printf("  Saved to: %s%s%s\n", colorBlue, out, colorReset)
	}
}

// =============================================================================
// DEVICE COMMANDS
// =============================================================================

func runDevice(args []string) {
	fs := flag.NewFlagSet("device", flag.ExitOnError)
	commonFlags(fs)
	var userAgent string
	fs.StringVar(&userAgent, "ua", "", "Base user agent to decorate")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shimctl device [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	headers := map[string]string{}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	resp, err := doJSON("GET", "/v1/device", nil, headers)
	if err != nil {
		fatal("Failed to get device: %v", err)
	}

	ua, _ := resp["userAgent"].(string)
	if quiet {
		fmt.Println(ua)
		return
	}
	printSuccess("Device")
	fmt.Printf("  Model: %s%v%s\n", colorCyan, resp["modelName"], colorReset)
	fmt.Printf("  SDK: %v\n", resp["sdkVersion"])
	fmt.Printf("  User agent: %s\n", ua)
}

func runService(args []string) {
	fs := flag.NewFlagSet("service", flag.ExitOnError)
	commonFlags(fs)
	var uri, params string
	fs.StringVar(&uri, "uri", "", "Service URI (required)")
	fs.StringVar(&params, "params", "{}", "Service parameters as a JSON object")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shimctl service -uri URI [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	if uri == "" {
		fs.Usage()
		os.Exit(1)
	}

	var parameters map[string]interface{}
	if err := json.Unmarshal([]byte(params), &parameters); err != nil {
		fatal("Invalid -params: %v", err)
	}

	resp, err := doJSON("POST", "/v1/device/service", map[string]interface{}{
		"uri":        uri,
		"parameters": parameters,
	}, nil)
	if err != nil {
		fatal("Service call failed: %v", err)
	}

	ok, _ := resp["returnValue"].(bool)
	if quiet {
		fmt.Println(ok)
		return
	}
	if ok {
		printSuccess("Service answered")
	} else {
		printWarning("Service returned false")
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doJSON(method, path string, body interface{}, headers map[string]string) (map[string]interface{}, error) {
	var reqJSON []byte
	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"

	status, _, respBody, err := doRequest(method, path, reqJSON, headers)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", status, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

func doRequest(method, path string, body []byte, headers map[string]string) (int, http.Header, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, shimURL+path, reqBody)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if !quiet {
		printRequest(method, path, requestID, body)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, resp.Header.Get("Content-Type"), respBody, duration)
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path, requestID string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s %s(%s)%s\n", colorYellow, colorReset, colorBold, method, path, colorReset, colorGray, requestID, colorReset)
	if len(body) > 0 {
		printBody(body, "  ")
	}
}

func printResponse(status int, contentType string, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	if strings.HasPrefix(contentType, "application/octet-stream") {
		fmt.Printf("  %s<%d bytes of binary data>%s\n", colorGray, len(body), colorReset)
		return
	}
	printBody(body, "  ")
}

func printBody(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
