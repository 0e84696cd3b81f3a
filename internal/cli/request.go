package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sesh/internal/filter"
	"github.com/sesh/internal/logging"
	"github.com/sesh/pkg/jsonvalue"
	"github.com/sesh/pkg/session"
)

type requestOptions struct {
	headers   []string
	params    []string
	form      []string
	files     []string
	cookies   []string
	proxies   []string
	data      string
	json      string
	user      string
	timeout   string
	cert      string
	key       string
	query     string
	noFollow  bool
	stream    bool
	insecure  bool
	include   bool
	raise     bool
	verbose   bool
	userAgent string
}

func newRequestCmd() *cobra.Command {
	o := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request METHOD URL",
		Short: "Send a single request",
		Long: `Send one request and print the response body.

Examples:
  sesh request GET https://httpbin.org/get -p q=1
  sesh request POST https://httpbin.org/post --json '{"a":1}' -i
  sesh request POST https://httpbin.org/post -f user=ada -F upload=./notes.txt
  sesh request GET https://httpbin.org/json -q 'slideshow.title'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&o.headers, "header", "H", nil, "Request header as 'Name: value'")
	f.StringArrayVarP(&o.params, "param", "p", nil, "Query parameter as key=value")
	f.StringArrayVarP(&o.form, "form", "f", nil, "Form field as key=value")
	f.StringArrayVarP(&o.files, "file", "F", nil, "Multipart file as field=path")
	f.StringArrayVarP(&o.cookies, "cookie", "b", nil, "Cookie as name=value")
	f.StringArrayVar(&o.proxies, "proxy", nil, "Proxy as scheme=url, scheme://host=url or all=url")
	f.StringVarP(&o.data, "data", "d", "", "Raw request body")
	f.StringVar(&o.json, "json", "", "JSON request body")
	f.StringVarP(&o.user, "user", "u", "", "Basic auth as user:password")
	f.StringVar(&o.timeout, "timeout", "", "Timeout in seconds, or connect,read")
	f.StringVar(&o.cert, "cert", "", "Client certificate (PEM, may include the key)")
	f.StringVar(&o.key, "key", "", "Client key when separate from --cert")
	f.StringVarP(&o.query, "query", "q", "", "JMESPath expression applied to a JSON response")
	f.BoolVar(&o.noFollow, "no-redirects", false, "Do not follow redirects")
	f.BoolVar(&o.stream, "stream", false, "Stream the body as it arrives")
	f.BoolVarP(&o.insecure, "insecure", "k", false, "Skip TLS verification")
	f.BoolVarP(&o.include, "include", "i", false, "Print status line and headers")
	f.BoolVar(&o.raise, "raise", false, "Exit with an error on 4xx and 5xx responses")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log request details to stderr")
	f.StringVarP(&o.userAgent, "user-agent", "A", "", "User-Agent header")

	return cmd
}

func (o *requestOptions) run(cmd *cobra.Command, method, url string) error {
	opts, err := o.options()
	if err != nil {
		return err
	}
	p, err := session.NewRequestParams(strings.ToUpper(method), url, opts...)
	if err != nil {
		return err
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	sessOpts := []session.SessionOption{session.WithLogger(logger)}
	if o.userAgent != "" {
		sessOpts = append(sessOpts, session.WithUserAgent(o.userAgent))
	}
	sess := session.New(sessOpts...)
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := sess.Do(ctx, p)
	if err != nil {
		return err
	}
	defer resp.Close()

	out := cmd.OutOrStdout()
	theme := themeFor(out)

	switch {
	case o.stream && o.query == "":
		if o.include {
			fmt.Fprintln(out, theme.StatusLine(resp))
			fmt.Fprintln(out)
		}
		if err := resp.IterContent(4096, func(chunk []byte) error {
			_, err := out.Write(chunk)
			return err
		}); err != nil {
			return err
		}
	case o.query != "":
		if err := resp.Load(); err != nil {
			return err
		}
		if o.include {
			fmt.Fprintln(out, theme.StatusLine(resp))
		}
		result, err := filter.Apply(resp.Content(), o.query)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(result))
	default:
		if err := resp.Load(); err != nil {
			return err
		}
		theme.Response(out, resp, o.include)
	}

	if o.raise {
		return resp.RaiseForStatus()
	}
	return nil
}

// options converts flags into request options.
func (o *requestOptions) options() ([]session.Option, error) {
	var opts []session.Option

	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		opts = append(opts, session.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	for _, kv := range []struct {
		flag   string
		values []string
		apply  func(map[string]string) session.Option
	}{
		{"param", o.params, session.WithQuery},
		{"cookie", o.cookies, session.WithCookies},
		{"file", o.files, session.WithFiles},
		{"proxy", o.proxies, session.WithProxies},
	} {
		if len(kv.values) == 0 {
			continue
		}
		m, err := pairs(kv.flag, kv.values)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kv.apply(m))
	}

	bodies := 0
	for _, set := range []bool{len(o.form) > 0, o.data != "", o.json != ""} {
		if set {
			bodies++
		}
	}
	if bodies > 1 {
		return nil, fmt.Errorf("only one of --form, --data and --json may be given")
	}

	if len(o.form) > 0 {
		m, err := pairs("form", o.form)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithForm(m))
	}
	if o.data != "" {
		opts = append(opts, session.WithBody([]byte(o.data)))
	}
	if o.json != "" {
		v, err := jsonvalue.Parse([]byte(o.json))
		if err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
		opts = append(opts, session.WithJSON(v))
	}

	if o.user != "" {
		user, pass, _ := strings.Cut(o.user, ":")
		opts = append(opts, session.WithBasicAuth(user, pass))
	}

	if o.timeout != "" {
		t, err := parseTimeout(o.timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithTimeout(t))
	}

	switch {
	case o.cert != "" && o.key != "":
		opts = append(opts, session.WithCertPair(o.cert, o.key))
	case o.cert != "":
		opts = append(opts, session.WithCert(o.cert))
	case o.key != "":
		return nil, fmt.Errorf("--key requires --cert")
	}

	if o.noFollow {
		opts = append(opts, session.WithAllowRedirects(false))
	}
	if o.stream {
		opts = append(opts, session.WithStream(true))
	}
	if o.insecure {
		opts = append(opts, session.WithVerify(false))
	}
	return opts, nil
}

func pairs(flag string, values []string) (map[string]string, error) {
	m := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --%s %q: expected key=value", flag, v)
		}
		m[k] = val
	}
	return m, nil
}

func parseTimeout(s string) (session.Timeout, error) {
	connect, read, pair := strings.Cut(s, ",")
	c, err := strconv.ParseFloat(strings.TrimSpace(connect), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --timeout %q", s)
	}
	if !pair {
		return session.SingleDeadline{Seconds: c}, nil
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(read), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --timeout %q", s)
	}
	return session.ConnectReadPair{Connect: c, Read: r}, nil
}
