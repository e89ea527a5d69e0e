// Package elasticsearch writes mapping entries as documents of an
// Elasticsearch index through the _bulk API.
package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	version "github.com/hashicorp/go-version"
	elastic "gopkg.in/olivere/elastic.v5"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	// DefaultURI is the default endpoint of Elasticsearch on the local machine.
	DefaultURI = "http://localhost:9200"
	// DefaultTimeout is used for every request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	supportedVersions = ">= 5.0, < 6.0"
)

var (
	_ writer.BatchWriter = &Elasticsearch{}
	_ writer.Opener      = &Elasticsearch{}
)

func init() {
	writer.Add(
		"elasticsearch",
		func() writer.Writer {
			return &Elasticsearch{BaseConfig: adaptor.BaseConfig{URI: DefaultURI}, Key: "id"}
		},
	)
}

// Elasticsearch indexes each entry under the id found in its Key field (the
// entry id when Key is empty). The namespace is "index.type". Without update
// documents are created and existing ones left untouched, with update they are
// replaced.
type Elasticsearch struct {
	writer.Base
	adaptor.BaseConfig
	Key             string `json:"key"`
	AWSAccessKeyID  string `json:"aws_access_key"`
	AWSAccessSecret string `json:"aws_access_secret"`

	index, typ string
	uri        *url.URL
	timeout    time.Duration
	es         *elastic.Client
}

func (e *Elasticsearch) Description() string {
	return "writes entries as documents of an Elasticsearch 5.x index through _bulk"
}

func (e *Elasticsearch) SampleConfig() string {
	return `uri: ${ELASTICSEARCH_URI}
namespace: affiliations.affiliation
key: id
# timeout: 10s # defaults to 30s
# aws_access_key: XXX # used for signing requests to AWS Elasticsearch service
# aws_access_secret: XXX # used for signing requests to AWS Elasticsearch service
`
}

// Validate parses the URI, namespace and timeout, it does not connect.
func (e *Elasticsearch) Validate() error {
	uri, err := url.Parse(e.URI)
	if err != nil {
		return client.InvalidURIError{URI: e.URI, Err: err.Error()}
	}
	if uri.Scheme == "" || uri.Host == "" {
		return client.InvalidURIError{URI: e.URI, Err: "expected scheme://host:port"}
	}
	e.uri = uri
	if e.index, e.typ, err = adaptor.SplitNamespace(e.Namespace); err != nil {
		return err
	}
	e.timeout = DefaultTimeout
	if e.Timeout != "" {
		if e.timeout, err = time.ParseDuration(e.Timeout); err != nil {
			return client.InvalidTimeoutError{Timeout: e.Timeout}
		}
	}
	return nil
}

// Open checks the cluster version and sets up the client.
func (e *Elasticsearch) Open(ctx context.Context) error {
	httpClient := &http.Client{
		Timeout:   e.timeout,
		Transport: newTransport(e.AWSAccessKeyID, e.AWSAccessSecret),
	}
	hostsAndPorts := strings.Split(e.uri.Host, ",")
	urls := make([]string, len(hostsAndPorts))
	for i, hAndP := range hostsAndPorts {
		urls[i] = fmt.Sprintf("%s://%s", e.uri.Scheme, hAndP)
	}

	stringVersion, err := determineVersion(ctx, httpClient, urls[0], e.uri.User)
	if err != nil {
		return err
	}
	v, err := version.NewVersion(stringVersion)
	if err != nil {
		return client.VersionError{URI: urls[0], V: stringVersion, Err: err.Error()}
	}
	constraint, _ := version.NewConstraint(supportedVersions)
	if !constraint.Check(v) {
		return client.VersionError{URI: urls[0], V: stringVersion, Err: "unsupported client"}
	}

	esOptions := []elastic.ClientOptionFunc{
		elastic.SetURL(urls...),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetHttpClient(httpClient),
		elastic.SetMaxRetries(2),
	}
	if e.uri.User != nil {
		if pwd, ok := e.uri.User.Password(); ok {
			esOptions = append(esOptions, elastic.SetBasicAuth(e.uri.User.Username(), pwd))
		}
	}
	e.es, err = elastic.NewClient(esOptions...)
	if err != nil {
		return client.ConnectError{Reason: err.Error()}
	}
	log.With("index", e.index).With("version", stringVersion).Debugln("connected")
	return nil
}

func determineVersion(ctx context.Context, c *http.Client, uri string, user *url.Userinfo) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	if user != nil {
		if pwd, ok := user.Password(); ok {
			req.SetBasicAuth(user.Username(), pwd)
		}
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", client.ConnectError{Reason: uri}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", client.VersionError{URI: uri, V: "", Err: "unable to read response body"}
	}
	var r struct {
		Name    string `json:"name"`
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if resp.StatusCode != http.StatusOK {
		return "", client.VersionError{URI: uri, V: "", Err: fmt.Sprintf("bad status code: %d", resp.StatusCode)}
	}
	err = json.Unmarshal(body, &r)
	if err != nil {
		return "", client.VersionError{URI: uri, V: "", Err: fmt.Sprintf("malformed JSON: %s", body)}
	} else if r.Version.Number == "" {
		return "", client.VersionError{URI: uri, V: "", Err: fmt.Sprintf("missing version: %s", body)}
	}
	return r.Version.Number, nil
}

func (e *Elasticsearch) Write(ctx context.Context, entry *message.Entry) error {
	err := e.WriteBatch(ctx, []*message.Entry{entry})
	if be, ok := err.(writer.BatchError); ok && len(be) == 1 {
		return be[0]
	}
	return err
}

// WriteBatch sends entries in one _bulk request. Documents that already exist
// are not errors when update is off.
func (e *Elasticsearch) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	if e.es == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	var (
		be   writer.BatchError
		sent []*message.Entry
	)
	bulk := e.es.Bulk()
	for _, entry := range entries {
		d, err := writer.DataOf(entry)
		if err != nil {
			be = append(be, stage.EntryError(entry.ID, err))
			continue
		}
		id, err := writer.Key(entry, d, e.Key)
		if err != nil {
			be = append(be, stage.EntryError(entry.ID, err))
			continue
		}
		br := elastic.NewBulkIndexRequest().Index(e.index).Type(e.typ).Id(fmt.Sprint(id)).Doc(d)
		if !e.Update {
			br = br.OpType("create")
		}
		bulk.Add(br)
		sent = append(sent, entry)
	}
	if len(sent) > 0 {
		resp, err := bulk.Do(ctx)
		if err != nil {
			for _, entry := range sent {
				be = append(be, stage.EntryError(entry.ID, err))
			}
		} else {
			be = append(be, e.itemErrors(resp, sent)...)
			log.With("index", e.index).
				With("took", fmt.Sprintf("%dms", resp.Took)).
				With("succeeded", len(resp.Succeeded())).
				With("failed", len(resp.Failed())).
				Debugln("_bulk flush completed")
		}
	}
	if len(be) > 0 {
		return be
	}
	return nil
}

// ItemError is the failure reported by Elasticsearch for one document.
type ItemError struct {
	Status int
	Type   string
	Reason string
}

func (e ItemError) Error() string {
	return fmt.Sprintf("status %d, %s: %s", e.Status, e.Type, e.Reason)
}

func (e *Elasticsearch) itemErrors(resp *elastic.BulkResponse, sent []*message.Entry) writer.BatchError {
	var be writer.BatchError
	for i, item := range resp.Items {
		if i >= len(sent) {
			break
		}
		for _, r := range item {
			if r.Status >= 200 && r.Status <= 299 {
				continue
			}
			if !e.Update && r.Status == http.StatusConflict {
				continue
			}
			ie := ItemError{Status: r.Status}
			if r.Error != nil {
				ie.Type, ie.Reason = r.Error.Type, r.Error.Reason
			}
			be = append(be, stage.EntryError(sent[i].ID, ie))
		}
	}
	return be
}
