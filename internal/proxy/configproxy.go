package proxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const (
	defaultClientConfigURL = "https://clientconfig.rpg.riotgames.com"
	defaultPasURL          = "https://riot-geo.pas.si.riotgames.com/pas/v1/service/chat"

	pasTimeout      = 5 * time.Second
	upstreamTimeout = 15 * time.Second
)

// Headers the game client sends that the upstream needs; everything else is
// dropped on purpose.
var forwardedHeaders = []string{"User-Agent", "Authorization", "X-Riot-Entitlements-JWT"}

// ConfigProxy is the loopback HTTP server the game client is pointed at via
// --client-config-url. Every request is forwarded to the real clientconfig
// service; 2xx JSON responses come back with the chat endpoint rewritten to
// the loopback chat interceptor.
type ConfigProxy struct {
	chatPort int
	holder   *TargetHolder

	// Overridable in tests.
	clientConfigURL string
	pasURL          string

	listener net.Listener
	server   *http.Server
	client   *http.Client
	pas      *http.Client
}

// NewConfigProxy builds a proxy that rewrites chat.port to chatPort and
// publishes the real endpoint through holder.
func NewConfigProxy(chatPort int, holder *TargetHolder) *ConfigProxy {
	return &ConfigProxy{
		chatPort:        chatPort,
		holder:          holder,
		clientConfigURL: defaultClientConfigURL,
		pasURL:          defaultPasURL,
		client:          &http.Client{Timeout: upstreamTimeout},
		pas:             &http.Client{Timeout: pasTimeout},
	}
}

// Start binds the listener on an ephemeral loopback port and serves in the
// background. It returns the bound port.
func (p *ConfigProxy) Start() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("binding config proxy listener: %w", err)
	}
	p.listener = l
	p.server = &http.Server{Handler: http.HandlerFunc(p.handleRequest)}
	go func() {
		if serveErr := p.server.Serve(l); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			utils.LogErrorf("Config proxy server stopped: %v", serveErr)
		}
	}()
	port := l.Addr().(*net.TCPAddr).Port
	utils.LogInfof("Config proxy listening on 127.0.0.1:%d", port)
	return port, nil
}

// Stop closes the listener and stops serving.
func (p *ConfigProxy) Stop() {
	if p.server != nil {
		p.server.Close()
	}
}

func (p *ConfigProxy) handleRequest(w http.ResponseWriter, r *http.Request) {
	upstreamURL := p.clientConfigURL + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, nil)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		utils.LogErrorf("Config fetch from %s failed: %v", upstreamURL, err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.LogErrorf("Reading config response failed: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.StatusCode/100 != 2 {
		utils.LogDebugf("Relaying upstream status %d for %s", resp.StatusCode, r.URL.Path)
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(p.rewriteConfig(body, r.Header.Get("Authorization")))
}

// rewriteConfig redirects the chat endpoint fields of the bootstrap document
// to the loopback chat interceptor and records the real endpoint. An
// unparsable body is forwarded as-is.
func (p *ConfigProxy) rewriteConfig(body []byte, auth string) []byte {
	if !gjson.ValidBytes(body) {
		utils.LogWarn("Bootstrap config is not valid JSON, forwarding unmodified")
		return body
	}

	out := body
	host := ""
	port := 0

	if h := gjson.GetBytes(body, `chat\.host`); h.Type == gjson.String {
		host = h.String()
		out, _ = sjson.SetBytes(out, `chat\.host`, "127.0.0.1")
	}
	if pt := gjson.GetBytes(body, `chat\.port`); pt.Type == gjson.Number {
		port = int(pt.Int())
		out, _ = sjson.SetBytes(out, `chat\.port`, p.chatPort)
	}
	if gjson.GetBytes(body, `chat\.allow_bad_cert\.enabled`).Exists() {
		out, _ = sjson.SetBytes(out, `chat\.allow_bad_cert\.enabled`, true)
	}

	affinities := gjson.GetBytes(body, `chat\.affinities`)
	if affinities.IsObject() {
		if gjson.GetBytes(body, `chat\.affinity\.enabled`).Type == gjson.True && auth != "" {
			if resolved, ok := p.resolveAffinity(auth, affinities); ok {
				host = resolved
			}
		}
		affinities.ForEach(func(k, _ gjson.Result) bool {
			out, _ = sjson.SetBytes(out, `chat\.affinities.`+escapeJSONKey(k.String()), "127.0.0.1")
			return true
		})
	}

	if host != "" && port != 0 {
		if p.holder.Set(ChatTarget{Host: host, Port: port}) {
			utils.LogInfof("Real chat server is %s:%d", host, port)
		}
	}
	return out
}

// resolveAffinity asks PAS which geographic chat shard the player belongs to
// and maps it through the affinities table. Every failure is swallowed; the
// pre-existing chat.host stays the candidate.
func (p *ConfigProxy) resolveAffinity(auth string, affinities gjson.Result) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, p.pasURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Authorization", auth)

	resp, err := p.pas.Do(req)
	if err != nil {
		utils.LogDebugf("PAS affinity lookup failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	token, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		utils.LogDebugf("PAS affinity lookup returned status %d", resp.StatusCode)
		return "", false
	}

	aff, ok := affinityFromJWT(string(token))
	if !ok {
		return "", false
	}
	utils.LogDebugf("Player affinity is %s", aff)

	mapped := affinities.Get(escapeJSONKey(aff))
	if mapped.Type != gjson.String || mapped.String() == "" {
		return "", false
	}
	return mapped.String(), true
}

// affinityFromJWT decodes the payload segment of a compact JWT and reads its
// affinity claim.
func affinityFromJWT(token string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 {
		return "", false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		if payload, err = base64.URLEncoding.DecodeString(parts[1]); err != nil {
			return "", false
		}
	}
	aff := gjson.GetBytes(payload, "affinity")
	if aff.Type != gjson.String || aff.String() == "" {
		return "", false
	}
	return aff.String(), true
}

var jsonKeyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapeJSONKey(k string) string {
	return jsonKeyEscaper.Replace(k)
}
