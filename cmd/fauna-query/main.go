// Command fauna-query runs a single FQL query from the command line.
// Configuration comes from FAUNA_SECRET and FAUNA_ENDPOINT.
//
//	fauna-query 'Collection.all().map(.name)'
//	echo 'Math.abs(-3)' | fauna-query
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fauna/fauna-go/client"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "overall query deadline")
	format := flag.String("format", client.FormatTagged, "wire format: tagged or simple")
	verbose := flag.Bool("v", false, "print summary and stats to stderr")
	flag.Parse()

	src := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(src) == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal("read stdin: %v", err)
		}
		src = string(b)
	}
	if strings.TrimSpace(src) == "" {
		fatal("no query given")
	}

	opts := client.DefaultClientOptions()
	opts.Format = *format
	c, err := client.NewClient(opts)
	if err != nil {
		fatal("%v", err)
	}
	defer c.Close()

	q, err := client.FQL(src, nil)
	if err != nil {
		fatal("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := c.Query(ctx, q, nil)
	if err != nil {
		if e, ok := client.AsError(err); ok && e.Summary != "" {
			fmt.Fprintln(os.Stderr, e.Summary)
		}
		fatal("%v", err)
	}

	out, err := json.MarshalIndent(res.Data, "", "  ")
	if err != nil {
		fatal("marshal result: %v", err)
	}
	fmt.Println(string(out))

	if *verbose {
		fmt.Fprintf(os.Stderr, "txn_ts=%d query_time_ms=%d read_ops=%d write_ops=%d attempts=%d\n",
			res.TxnTime, res.Stats.QueryTimeMs, res.Stats.ReadOps, res.Stats.WriteOps, res.Stats.Attempts)
		if res.Summary != "" {
			fmt.Fprintln(os.Stderr, res.Summary)
		}
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "fauna-query: "+format+"\n", args...)
	os.Exit(1)
}
