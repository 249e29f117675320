// bttgitconf 是配置分发核心的运维入口：
// serve 暴露配置服务端点，snapshot/refresh 是客户端侧的查询与触发，
// publish/history 操作 Redis 后端。
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	bttgitconf "github.com/btt-go/btt-gitconf"
)

var (
	cfgPath = "bttgitconf.toml"
	cfg     = NewConfig()
)

var rootCmd = &cobra.Command{
	Use:           "bttgitconf",
	Short:         "Git-backed, hot-reloadable configuration service and client",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := cfg.Load(cfgPath)
		if err != nil {
			// 默认路径下文件缺失时静默使用默认值；显式指定时报错
			if !os.IsNotExist(err) || cmd.Flags().Changed("config") {
				return fmt.Errorf("load config %s: %w", cfgPath, err)
			}
		}
		applyFlagOverrides(cmd)
		if cfg.RedisPrefix != "" {
			bttgitconf.SetPrefix(cfg.RedisPrefix)
		}
		return nil
	},
}

// Flag 覆盖值（仅在显式设置时覆盖配置文件）
var (
	flagListen      string
	flagGitDir      string
	flagApplication string
	flagProfile     string
	flagLabel       string
	flagServerURL   string
	flagRedisAddr   string
	flagStateFile   string
)

func applyFlagOverrides(cmd *cobra.Command) {
	set := func(name string, dst *string, src string) {
		if cmd.Flags().Changed(name) {
			*dst = src
		}
	}
	set("listen", &cfg.Listen, flagListen)
	set("git-dir", &cfg.GitDir, flagGitDir)
	set("application", &cfg.Application, flagApplication)
	set("profile", &cfg.Profile, flagProfile)
	set("label", &cfg.Label, flagLabel)
	set("server-url", &cfg.ServerURL, flagServerURL)
	set("redis", &cfg.RedisAddr, flagRedisAddr)
	set("state", &cfg.StateFile, flagStateFile)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the config server endpoint over a git or redis backed store",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, _ := cmd.Flags().GetString("backend")

		srv := bttgitconf.NewServer()
		switch backend {
		case "git":
			srv.Register(cfg.Application, "", bttgitconf.NewGitStore(cfg.GitDir, propsFile(cfg.Application, "")))
			if cfg.Profile != "" && cfg.Profile != bttgitconf.DefaultProfile {
				srv.Register(cfg.Application, cfg.Profile, bttgitconf.NewGitStore(cfg.GitDir, propsFile(cfg.Application, cfg.Profile)))
			}
		case "redis":
			store := bttgitconf.NewRedisStore(newRedis(), cfg.Label)
			srv.Register(cfg.Application, "", store)
			if cfg.Profile != "" && cfg.Profile != bttgitconf.DefaultProfile {
				srv.Register(cfg.Application, cfg.Profile, store)
			}
		default:
			return fmt.Errorf("unknown backend %q (want git or redis)", backend)
		}

		log.Printf("config server listening on %s (backend=%s, application=%s)", cfg.Listen, backend, cfg.Application)
		return http.ListenAndServe(cfg.Listen, srv)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch and print the current snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher := bttgitconf.NewHTTPFetcher(cfg.ServerURL)
		ss, err := fetcher.Fetch(cmd.Context(), cfg.Application, cfg.Profile, cfg.Label)
		if err != nil {
			return err
		}

		fmt.Printf("#version=%s\n", ss.Version)
		fmt.Print(bttgitconf.FormatProperties(ss))
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the latest snapshot and print the keys that changed",
	Long: `Fetch the latest snapshot, diff it against the locally persisted state
file, print one changed key per line and persist the new state.
No output and exit code 0 when nothing changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := bttgitconf.NewSnapshotCache()
		if prev, err := loadState(cfg.StateFile); err != nil {
			return err
		} else if prev != nil {
			cache.Replace(prev)
		}

		fetcher := bttgitconf.NewHTTPFetcher(cfg.ServerURL)
		ss, err := fetcher.Fetch(cmd.Context(), cfg.Application, cfg.Profile, cfg.Label)
		if err != nil {
			return err
		}

		changed := cache.Replace(ss)
		for _, key := range changed {
			fmt.Println(key)
		}

		return saveState(cfg.StateFile, ss)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <properties-file>",
	Short: "Publish a properties file to the redis store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		// 发布侧严格解析：坏行直接拒绝，而不是带着坏记录上线
		ss, err := bttgitconf.ParseStrict(string(data), "")
		if err != nil {
			return err
		}

		p := bttgitconf.NewPublisher(newRedis(), cfg.Label)
		allHash, err := p.Publish(cmd.Context(), ss)
		if err != nil {
			return err
		}

		fmt.Println(allHash)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent publish history from the redis store",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("limit")

		p := bttgitconf.NewPublisher(newRedis(), cfg.Label)
		records, err := p.History(cmd.Context(), n)
		if err != nil {
			return err
		}

		for _, rec := range records {
			fmt.Printf("%d\t%s\t%s\n", rec.Timestamp, rec.Label, rec.AllHash)
		}
		return nil
	},
}

func newRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
}

// propsFile 返回 application/profile 对应的属性文件名。
// default profile 读 app.properties，其余读 app-<profile>.properties。
func propsFile(application, profile string) string {
	if profile == "" || profile == bttgitconf.DefaultProfile {
		return application + ".properties"
	}
	return application + "-" + profile + ".properties"
}

// loadState 读取 refresh 的本地状态文件。文件不存在时返回 (nil, nil)。
func loadState(path string) (*bttgitconf.Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	text := string(data)
	version := ""
	if rest, ok := strings.CutPrefix(text, "#version="); ok {
		if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
			version = rest[:idx]
		}
	}
	return bttgitconf.Parse(text, version), nil
}

// saveState 持久化最近一次看到的快照。
func saveState(path string, ss *bttgitconf.Snapshot) error {
	content := fmt.Sprintf("#version=%s\n%s", ss.Version, bttgitconf.FormatProperties(ss))
	return os.WriteFile(path, []byte(content), 0644)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagApplication, "application", "", "Application name")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Profile name")
	rootCmd.PersistentFlags().StringVar(&flagLabel, "label", "", "Version label")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis", "", "Redis address")

	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address")
	serveCmd.Flags().StringVar(&flagGitDir, "git-dir", "", "Git repository directory")
	serveCmd.Flags().String("backend", "git", "Store backend: git or redis")

	snapshotCmd.Flags().StringVar(&flagServerURL, "server-url", "", "Config server base URL")
	refreshCmd.Flags().StringVar(&flagServerURL, "server-url", "", "Config server base URL")
	refreshCmd.Flags().StringVar(&flagStateFile, "state", "", "Local state file")

	historyCmd.Flags().Int("limit", 10, "Max records to print")

	rootCmd.AddCommand(serveCmd, snapshotCmd, refreshCmd, publishCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
