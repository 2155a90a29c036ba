package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strconv"

	bonito "github.com/kayac/Bonito"
	"github.com/kayac/Bonito/config"
	"github.com/kayac/Bonito/fcmv1"
	"github.com/sirupsen/logrus"
)

var version string

func main() {
	var (
		confPath    string
		logFormat   string
		port        int
		enablePprof bool
		showVersion bool
		logLevel    string
		endpoint    string
		timeout     int
	)

	flag.StringVar(&confPath, "config", "/etc/bonito/config.toml", "specify config file.")
	flag.StringVar(&confPath, "c", "/etc/bonito/config.toml", "specify config file.")
	flag.IntVar(&port, "port", 0, "Bonito port number (range 1024-65535).")
	flag.StringVar(&logFormat, "log-format", "", "specifies the log format: ltsv or json.")
	flag.BoolVar(&enablePprof, "enable-pprof", false, "enable pprof on a random localhost port.")
	flag.BoolVar(&showVersion, "v", false, "show version number.")
	flag.BoolVar(&showVersion, "version", false, "show version number.")
	flag.BoolVar(&bonito.OutputHookStdout, "output-hook-stdout", false, "merge stdout of hook command to bonito's stdout")
	flag.BoolVar(&bonito.OutputHookStderr, "output-hook-stderr", false, "merge stderr of hook command to bonito's stderr")

	flag.StringVar(&endpoint, "endpoint", "", "override [fcm_v1] endpoint, e.g. the url of fcmv1mock.")
	flag.IntVar(&timeout, "timeout", 0, "override [fcm_v1] timeout in seconds.")
	flag.StringVar(&logLevel, "log-level", "info", "set the log level (debug, warn, info)")
	flag.Parse()

	if showVersion {
		if version == "" {
			version = bonito.Version
		}
		fmt.Printf("Compiler: %s %s\n", runtime.Compiler, runtime.Version())
		fmt.Printf("Bonito version: %s\n", version)
		return
	}

	initLogrus(logFormat, logLevel)

	c, err := config.LoadConfig(confPath)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
	if !c.FCMv1.Enabled {
		logrus.Error("[fcm_v1] google_application_credentials is not specified")
		os.Exit(1)
	}
	if endpoint != "" {
		if err := c.FCMv1.SetEndpoint(endpoint); err != nil {
			logrus.Error(err)
			os.Exit(1)
		}
	}
	if timeout > 0 {
		c.FCMv1.Timeout = timeout
	}
	logrus.WithFields(logrus.Fields{
		"project_id": c.FCMv1.ProjectID,
		"endpoint":   endpointString(c.FCMv1),
		"timeout":    c.FCMv1.ClientTimeout(),
	}).Info("fcm_v1 client")

	c.Provider.DebugPort = 0
	if port != 0 {
		c.Provider.Port = port // Default port number
	}

	// for profiling
	if enablePprof {
		mux := http.NewServeMux()
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			logrus.Fatal(err)
		}
		debugAddr := l.Addr().String()
		_, p, err := net.SplitHostPort(debugAddr)
		if err != nil {
			logrus.Fatal(err)
		}
		dp, err := strconv.Atoi(p)
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("Debug port (pprof) is %d.", dp)
		c.Provider.DebugPort = dp

		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/", pprof.Index)

		go func() {
			logrus.Fatal(http.Serve(l, mux))
		}()
	}

	bonito.StartServer(c)
}

func initLogrus(format string, logLevel string) {
	switch format {
	case "ltsv":
		logrus.SetFormatter(&bonito.LtsvFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logrus.SetLevel(lvl)
}

func endpointString(s config.SectionFCMv1) string {
	if s.EndpointURL != nil {
		return s.EndpointURL.String()
	}
	return fmt.Sprintf(fcmv1.DefaultFCMEndpointFmt, s.ProjectID)
}
