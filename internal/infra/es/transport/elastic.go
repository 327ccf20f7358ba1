package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/olivere/elastic/v7/uritemplates"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/metrics"
)

const defaultDocType = "_doc"

// Options configures an Elastic transport.
type Options struct {
	URLs     []string
	Username string
	Password string
	Timeout  time.Duration
	Gzip     bool

	// RoundTripper replaces the default HTTP transport, e.g. with request signing.
	RoundTripper http.RoundTripper
	Logger       *slog.Logger
}

// Elastic is a Transport over olivere/elastic. The driver's own retries,
// sniffing and health checks are disabled.
type Elastic struct {
	client *elastic.Client
	http   *http.Client
	stats  *Stats
	log    *slog.Logger
}

// NewElastic creates a transport for the given nodes.
func NewElastic(opts Options) (*Elastic, error) {
	if len(opts.URLs) == 0 {
		return nil, errors.New("at least one cluster url is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	rt := opts.RoundTripper
	if rt == nil {
		rt = NewHTTPTransport()
	}
	httpClient := &http.Client{Timeout: opts.Timeout, Transport: rt}

	clientOpts := []elastic.ClientOptionFunc{
		elastic.SetURL(opts.URLs...),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetHttpClient(httpClient),
		elastic.SetRetrier(elastic.NewStopRetrier()),
		elastic.SetGzip(opts.Gzip),
		elastic.SetErrorLog(printfLogger{log: log, level: slog.LevelWarn}),
		elastic.SetInfoLog(printfLogger{log: log, level: slog.LevelDebug}),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts, elastic.SetBasicAuth(opts.Username, opts.Password))
	}

	client, err := elastic.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create elastic client: %w", err)
	}

	return &Elastic{
		client: client,
		http:   httpClient,
		stats:  NewStats(),
		log:    log,
	}, nil
}

// NewHTTPTransport returns the pooled HTTP transport used for cluster nodes.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

func (t *Elastic) Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error) {
	path, err := searchPath(q)
	if err != nil {
		return nil, err
	}

	params := queryParams(q)
	if q.Size != nil {
		params.Set("size", strconv.Itoa(*q.Size))
	}
	if len(q.Source) > 0 {
		params.Set("_source", strings.Join(q.Source, ","))
	}

	var out domain.SearchResponse
	if _, err := t.perform(ctx, "search", elastic.PerformRequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Params: params,
		Body:   bodyOrEmpty(q.Body),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Get(ctx context.Context, q domain.Query) (*domain.GetResponse, error) {
	path, err := docPath(q, "")
	if err != nil {
		return nil, err
	}
	params := queryParams(q)
	if len(q.Source) > 0 {
		params.Set("_source", strings.Join(q.Source, ","))
	}

	var out domain.GetResponse
	if _, err := t.perform(ctx, "get", elastic.PerformRequestOptions{
		Method: http.MethodGet,
		Path:   path,
		Params: params,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Index(ctx context.Context, q domain.Query) (*domain.IndexResponse, error) {
	method := http.MethodPut
	if q.ID == "" {
		method = http.MethodPost
	}
	path, err := docPath(q, "")
	if err != nil {
		return nil, err
	}

	var out domain.IndexResponse
	if _, err := t.perform(ctx, "index", elastic.PerformRequestOptions{
		Method: method,
		Path:   path,
		Params: queryParams(q),
		Body:   q.Body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Create(ctx context.Context, q domain.Query) (*domain.IndexResponse, error) {
	if q.ID == "" {
		return nil, errors.New("create requires a document id")
	}
	path, err := actionPath(q, "_create")
	if err != nil {
		return nil, err
	}

	var out domain.IndexResponse
	if _, err := t.perform(ctx, "create", elastic.PerformRequestOptions{
		Method: http.MethodPut,
		Path:   path,
		Params: queryParams(q),
		Body:   q.Body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Update(ctx context.Context, q domain.Query) (*domain.IndexResponse, error) {
	if q.ID == "" {
		return nil, errors.New("update requires a document id")
	}
	path, err := actionPath(q, "_update")
	if err != nil {
		return nil, err
	}

	var out domain.IndexResponse
	if _, err := t.perform(ctx, "update", elastic.PerformRequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Params: queryParams(q),
		Body:   q.Body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Delete(ctx context.Context, q domain.Query) (*domain.DeleteResponse, error) {
	if q.ID == "" {
		return nil, errors.New("delete requires a document id")
	}
	path, err := docPath(q, "")
	if err != nil {
		return nil, err
	}

	var out domain.DeleteResponse
	if _, err := t.perform(ctx, "delete", elastic.PerformRequestOptions{
		Method:       http.MethodDelete,
		Path:         path,
		Params:       queryParams(q),
		IgnoreErrors: []int{http.StatusNotFound},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) Bulk(ctx context.Context, body []any) (*domain.BulkResponse, error) {
	payload, err := EncodeBulk(body)
	if err != nil {
		return nil, err
	}

	var out domain.BulkResponse
	if _, err := t.perform(ctx, "bulk", elastic.PerformRequestOptions{
		Method:      http.MethodPost,
		Path:        "/_bulk",
		Body:        payload,
		ContentType: "application/x-ndjson",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) IndexExists(ctx context.Context, index string) (bool, error) {
	path, err := expand("/{index}", map[string]string{"index": index})
	if err != nil {
		return false, err
	}
	res, err := t.perform(ctx, "indexExists", elastic.PerformRequestOptions{
		Method:       http.MethodHead,
		Path:         path,
		IgnoreErrors: []int{http.StatusNotFound},
	}, nil)
	if err != nil {
		return false, err
	}
	return res.StatusCode == http.StatusOK, nil
}

func (t *Elastic) IndexCreate(ctx context.Context, q domain.Query) (*domain.AckResponse, error) {
	path, err := expand("/{index}", map[string]string{"index": q.Index})
	if err != nil {
		return nil, err
	}

	var out domain.AckResponse
	if _, err := t.perform(ctx, "indexCreate", elastic.PerformRequestOptions{
		Method: http.MethodPut,
		Path:   path,
		Params: queryParams(q),
		Body:   q.Body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) IndexRefresh(ctx context.Context, index string) (json.RawMessage, error) {
	path, err := indexScoped(index, "_refresh")
	if err != nil {
		return nil, err
	}
	res, err := t.perform(ctx, "indexRefresh", elastic.PerformRequestOptions{Method: http.MethodPost, Path: path}, nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (t *Elastic) IndexRecovery(ctx context.Context, index string) (json.RawMessage, error) {
	path, err := indexScoped(index, "_recovery")
	if err != nil {
		return nil, err
	}
	res, err := t.perform(ctx, "indexRecovery", elastic.PerformRequestOptions{Method: http.MethodGet, Path: path}, nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (t *Elastic) PutTemplate(ctx context.Context, name string, body any) (*domain.AckResponse, error) {
	path, err := expand("/_template/{name}", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var out domain.AckResponse
	if _, err := t.perform(ctx, "putTemplate", elastic.PerformRequestOptions{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) ClusterStats(ctx context.Context) (*domain.ClusterStats, error) {
	var out domain.ClusterStats
	if _, err := t.perform(ctx, "clusterStats", elastic.PerformRequestOptions{
		Method: http.MethodGet,
		Path:   "/_cluster/stats",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Elastic) IndexSettings(ctx context.Context) (map[string]domain.IndexSettings, error) {
	out := make(map[string]domain.IndexSettings)
	if _, err := t.perform(ctx, "indexSettings", elastic.PerformRequestOptions{
		Method: http.MethodGet,
		Path:   "/_all/_settings",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Elastic) NodesInfo(ctx context.Context) (json.RawMessage, error) {
	res, err := t.perform(ctx, "nodeInfo", elastic.PerformRequestOptions{Method: http.MethodGet, Path: "/_nodes"}, nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (t *Elastic) NodesStats(ctx context.Context) (json.RawMessage, error) {
	res, err := t.perform(ctx, "nodeStats", elastic.PerformRequestOptions{Method: http.MethodGet, Path: "/_nodes/stats"}, nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (t *Elastic) Ping(ctx context.Context) error {
	_, err := t.perform(ctx, "ping", elastic.PerformRequestOptions{Method: http.MethodHead, Path: "/"}, nil)
	return err
}

// Health returns request statistics.
func (t *Elastic) Health() Health {
	return t.stats.Snapshot()
}

// Close releases idle connections.
func (t *Elastic) Close() error {
	t.client.Stop()
	t.http.CloseIdleConnections()
	return nil
}

func (t *Elastic) perform(ctx context.Context, op string, opts elastic.PerformRequestOptions, out any) (*elastic.Response, error) {
	start := time.Now()
	res, err := t.client.PerformRequest(ctx, opts)
	latency := time.Since(start)
	metrics.TransportLatency.WithLabelValues(op).Observe(latency.Seconds())

	if err != nil {
		terr := translateError(ctx, err)
		t.stats.RecordFailure(errors.Is(terr, domain.ErrNoLivingConnections))
		t.log.Debug("Cluster request failed", "op", op, "method", opts.Method, "path", opts.Path, "error", terr)
		return nil, terr
	}
	t.stats.RecordSuccess(latency)

	if out != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return res, nil
}

// translateError maps driver errors onto the domain error shapes the
// classifier understands.
func translateError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ee *elastic.Error
	if errors.As(err, &ee) {
		ce := &domain.ClusterError{Status: ee.Status}
		if ee.Details != nil {
			ce.Type = ee.Details.Type
			ce.Reason = ee.Details.Reason
		}
		if ce.Reason == "" && ce.Type == "" {
			ce.Reason = http.StatusText(ee.Status)
		}
		return ce
	}

	var netErr net.Error
	if elastic.IsConnErr(err) || errors.Is(err, elastic.ErrNoClient) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrNoLivingConnections, err)
	}
	return err
}

// EncodeBulk renders bulk lines as newline-delimited JSON. Strings, byte
// slices and raw messages are taken as already-encoded lines.
func EncodeBulk(lines []any) (string, error) {
	var buf bytes.Buffer
	for i, line := range lines {
		switch v := line.(type) {
		case string:
			buf.WriteString(v)
		case []byte:
			buf.Write(v)
		case json.RawMessage:
			buf.Write(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("encode bulk line %d: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func expand(tmpl string, vars map[string]string) (string, error) {
	path, err := uritemplates.Expand(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("build path %s: %w", tmpl, err)
	}
	return path, nil
}

func searchPath(q domain.Query) (string, error) {
	switch {
	case q.Index == "":
		return "/_search", nil
	case q.Type == "":
		return expand("/{index}/_search", map[string]string{"index": q.Index})
	default:
		return expand("/{index}/{type}/_search", map[string]string{"index": q.Index, "type": q.Type})
	}
}

// docPath is /{index}/{type}/{id}, with _doc when no mapping type is set.
func docPath(q domain.Query, suffix string) (string, error) {
	typ := q.Type
	if typ == "" {
		typ = defaultDocType
	}
	vars := map[string]string{"index": q.Index, "type": typ, "id": q.ID}
	if q.ID == "" {
		return expand("/{index}/{type}"+suffix, vars)
	}
	return expand("/{index}/{type}/{id}"+suffix, vars)
}

// actionPath addresses _create and _update. Typeless clusters use
// /{index}/{action}/{id}; typed ones /{index}/{type}/{id}/{action}.
func actionPath(q domain.Query, action string) (string, error) {
	if q.Type == "" {
		return expand("/{index}/"+action+"/{id}", map[string]string{"index": q.Index, "id": q.ID})
	}
	return docPath(q, "/"+action)
}

func indexScoped(index, endpoint string) (string, error) {
	if index == "" {
		return "/" + endpoint, nil
	}
	return expand("/{index}/"+endpoint, map[string]string{"index": index})
}

func queryParams(q domain.Query) url.Values {
	params := url.Values{}
	for k, v := range q.Params {
		params.Set(k, v)
	}
	return params
}

func bodyOrEmpty(body any) any {
	if body == nil {
		return map[string]any{}
	}
	return body
}

// printfLogger routes driver logs into slog.
type printfLogger struct {
	log   *slog.Logger
	level slog.Level
}

func (l printfLogger) Printf(format string, v ...any) {
	l.log.Log(context.Background(), l.level, fmt.Sprintf(format, v...), "component", "elastic")
}
