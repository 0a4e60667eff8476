// nonmsg-keytool drives the crypto core from the command line: identity
// generation, word-code derivation, pairing payloads, message
// encryption and passphrase-protected key export.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nonmessenger/go-backend/internal/app"
	"nonmessenger/go-backend/internal/bootstrap/keytoolconfig"
	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/pairing"
	"nonmessenger/go-backend/internal/platform/cryptometrics"
	"nonmessenger/go-backend/internal/platform/privacylog"
	"nonmessenger/go-backend/internal/securestore"
	"nonmessenger/go-backend/pkg/models"
)

const usage = `usage: nonmsg-keytool <command> [flags]

commands:
  identity     generate a random 4096-bit identity key pair
  codes        generate a contact code and a secret code (8 words each)
  derive       derive a key pair from word codes
  qr           build a pairing payload for a public key
  parse-qr     validate and decode a pairing payload
  encrypt      encrypt a message for a recipient public key
  decrypt      decrypt a message with a private key
  export       seal a key profile under a passphrase
  import       open a sealed key profile
  fingerprint  print the short contact id of a public key
`

func main() {
	if len(os.Args) < 2 {
		fail(usage)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg := keytoolconfig.LoadFromPath(os.Getenv("NONMSG_CONFIG"))
	svc := newService(cfg)

	switch command {
	case "identity":
		runIdentity(svc, cfg, args)
	case "codes":
		runCodes(svc, args)
	case "derive":
		runDerive(svc, cfg, args)
	case "qr":
		runQR(svc, args)
	case "parse-qr":
		runParseQR(svc, args)
	case "encrypt":
		runEncrypt(svc, args)
	case "decrypt":
		runDecrypt(svc, args)
	case "export":
		runExport(svc, cfg, args)
	case "import":
		runImport(svc, args)
	case "fingerprint":
		runFingerprint(svc, args)
	default:
		failf("unknown command %q\n\n%s", command, usage)
	}
}

func newService(cfg keytoolconfig.Config) *app.Service {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var inner slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "text") {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	log := slog.New(privacylog.WrapHandler(inner))

	metrics := cryptometrics.New()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	verifier := pairing.NewVerifierWithPolicy(
		cfg.Verification.AttemptInterval,
		cfg.Verification.AttemptBurst,
	)
	return app.NewServiceWithVerifier(log, entropy.System(), metrics, verifier)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runIdentity(svc *app.Service, cfg keytoolconfig.Config, args []string) {
	fs := flag.NewFlagSet("identity", flag.ExitOnError)
	outDir := fs.String("out-dir", cfg.OutputDir, "directory for the key files")
	parseFlags(fs, args)

	pair, err := svc.GenerateIdentity()
	if err != nil {
		failf("generate identity: %v", err)
	}
	deviceID, err := svc.NewDeviceID()
	if err != nil {
		failf("generate device id: %v", err)
	}

	publicPath := filepath.Join(*outDir, "identity.public.pem")
	privatePath := filepath.Join(*outDir, "identity.private.pem")
	writeText(publicPath, pair.PublicKey, 0o644)
	writeText(privatePath, pair.PrivateKey, 0o600)

	writeJSON(os.Stdout, map[string]string{
		"publicKeyFile":  publicPath,
		"privateKeyFile": privatePath,
		"deviceId":       deviceID,
	})
}

func runCodes(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("codes", flag.ExitOnError)
	parseFlags(fs, args)

	contact, err := svc.GenerateContactCode()
	if err != nil {
		failf("generate contact code: %v", err)
	}
	secret, err := svc.GenerateSecretCode()
	if err != nil {
		failf("generate secret code: %v", err)
	}
	writeJSON(os.Stdout, map[string][]string{
		"contactCode": contact,
		"secretCode":  secret,
	})
}

func runDerive(svc *app.Service, cfg keytoolconfig.Config, args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	tier := fs.String("tier", "contact", "key tier: contact or full")
	words := fs.String("words", "", "space-separated word code")
	outDir := fs.String("out-dir", cfg.OutputDir, "directory for the key files")
	parseFlags(fs, args)

	fields := strings.Fields(strings.ToLower(*words))
	if len(fields) == 0 {
		fail("derive: -words is required")
	}

	var (
		pair models.KeyPair
		err  error
	)
	switch *tier {
	case "contact":
		pair, err = svc.ContactKeyPair(fields)
	case "full":
		pair, err = svc.FullKeyPair(fields)
	default:
		failf("derive: unknown tier %q", *tier)
	}
	if err != nil {
		failf("derive %s key pair: %v", *tier, err)
	}

	publicPath := filepath.Join(*outDir, *tier+".public.pem")
	privatePath := filepath.Join(*outDir, *tier+".private.pem")
	writeText(publicPath, pair.PublicKey, 0o644)
	writeText(privatePath, pair.PrivateKey, 0o600)

	writeJSON(os.Stdout, map[string]string{
		"tier":           *tier,
		"publicKeyFile":  publicPath,
		"privateKeyFile": privatePath,
	})
}

func runQR(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("qr", flag.ExitOnError)
	keyFile := fs.String("public-key-file", "", "PEM public key file")
	deviceID := fs.String("device-id", "", "device id (generated when empty)")
	parseFlags(fs, args)

	publicKey := readKeyFile(*keyFile, "qr: -public-key-file is required")
	id := *deviceID
	if id == "" {
		var err error
		if id, err = svc.NewDeviceID(); err != nil {
			failf("generate device id: %v", err)
		}
	}

	raw, err := svc.BuildPairingQR(publicKey, id)
	if err != nil {
		failf("build pairing payload: %v", err)
	}
	writeStdoutln(raw)
}

func runParseQR(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("parse-qr", flag.ExitOnError)
	in := fs.String("in", "", "payload file (stdin when empty)")
	parseFlags(fs, args)

	payload, err := svc.ParsePairingQR(readInput(*in))
	if err != nil {
		failf("parse pairing payload: %v", err)
	}
	contactID, err := svc.ContactID(payload.PublicKey)
	if err != nil {
		failf("fingerprint public key: %v", err)
	}
	writeJSON(os.Stdout, map[string]any{
		"deviceId":  payload.DeviceID,
		"contactId": contactID,
		"timestamp": payload.Timestamp,
	})
}

func runEncrypt(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	keyFile := fs.String("public-key-file", "", "recipient PEM public key file")
	message := fs.String("message", "", "plaintext (stdin when empty)")
	parseFlags(fs, args)

	publicKey := readKeyFile(*keyFile, "encrypt: -public-key-file is required")
	plaintext := *message
	if plaintext == "" {
		plaintext = readInput("")
	}

	msg, err := svc.EncryptMessage(plaintext, publicKey)
	if err != nil {
		failf("encrypt: %v", err)
	}
	writeJSON(os.Stdout, msg)
}

func runDecrypt(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	keyFile := fs.String("private-key-file", "", "PEM private key file")
	in := fs.String("in", "", "encrypted message JSON file (stdin when empty)")
	parseFlags(fs, args)

	privateKey := readKeyFile(*keyFile, "decrypt: -private-key-file is required")

	var msg models.EncryptedMessage
	if err := json.Unmarshal([]byte(readInput(*in)), &msg); err != nil {
		failf("decode encrypted message: %v", err)
	}
	plaintext, err := svc.DecryptMessage(msg, privateKey)
	if err != nil {
		failf("decrypt: %v", err)
	}
	writeStdoutln(plaintext)
}

func runExport(svc *app.Service, cfg keytoolconfig.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	publicFile := fs.String("public-key-file", "", "PEM public key file")
	privateFile := fs.String("private-key-file", "", "PEM private key file")
	deviceID := fs.String("device-id", "", "device id")
	contactCode := fs.String("contact-code", "", "space-separated contact code")
	out := fs.String("out", filepath.Join(cfg.OutputDir, "profile.nmkey"), "sealed profile path")
	parseFlags(fs, args)

	profile := securestore.Profile{
		Version:     "1.0",
		ContactCode: strings.Fields(*contactCode),
		PublicKey:   readKeyFile(*publicFile, "export: -public-key-file is required"),
		PrivateKey:  readKeyFile(*privateFile, "export: -private-key-file is required"),
		DeviceID:    strings.TrimSpace(*deviceID),
		CreatedAt:   time.Now().Unix(),
	}

	sealed, err := svc.ExportProfile(readPassphrase(), profile)
	if err != nil {
		failf("export profile: %v", err)
	}
	if err := os.WriteFile(*out, sealed, 0o600); err != nil {
		failf("write sealed profile: %v", err)
	}
	writeStdoutln(*out)
}

func runImport(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "sealed profile path")
	parseFlags(fs, args)

	if *in == "" {
		fail("import: -in is required")
	}
	sealed, err := os.ReadFile(*in)
	if err != nil {
		failf("read sealed profile: %v", err)
	}
	profile, err := svc.ImportProfile(readPassphrase(), sealed)
	if err != nil {
		failf("import profile: %v", err)
	}
	writeJSON(os.Stdout, profile)
}

func runFingerprint(svc *app.Service, args []string) {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	keyFile := fs.String("public-key-file", "", "PEM public key file")
	parseFlags(fs, args)

	publicKey := readKeyFile(*keyFile, "fingerprint: -public-key-file is required")
	contactID, err := svc.ContactID(publicKey)
	if err != nil {
		failf("fingerprint public key: %v", err)
	}
	writeStdoutln(contactID)
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
}

func readKeyFile(path, missingMsg string) string {
	if strings.TrimSpace(path) == "" {
		fail(missingMsg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		failf("read key file %s: %v", path, err)
	}
	return string(data)
}

func readInput(path string) string {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			failf("read stdin: %v", err)
		}
		return strings.TrimSpace(string(data))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		failf("read file %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

func readPassphrase() string {
	passphrase := strings.TrimSpace(os.Getenv("NONMSG_PASSPHRASE"))
	if passphrase == "" {
		fail("NONMSG_PASSPHRASE is required")
	}
	return passphrase
}

func writeJSON(w *os.File, value any) {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		failf("marshal json: %v", err)
	}
	if _, err := fmt.Fprintln(w, string(raw)); err != nil {
		os.Exit(1)
	}
}

func writeText(path, value string, mode os.FileMode) {
	if err := os.WriteFile(path, []byte(value), mode); err != nil {
		failf("write file %s: %v", path, err)
	}
}

func writeStdoutln(line string) {
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		os.Exit(1)
	}
}

func fail(msg string) {
	if _, err := fmt.Fprintln(os.Stderr, msg); err != nil {
		os.Exit(1)
	}
	os.Exit(1)
}

func failf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format+"\n", args...); err != nil {
		os.Exit(1)
	}
	os.Exit(1)
}
