package main

import "github.com/BurntSushi/toml"

// Config 是 CLI 的 TOML 配置。命令行 Flag 的优先级高于配置文件。
type Config struct {
	Listen      string `toml:"listen"`       // serve 监听地址
	GitDir      string `toml:"git_dir"`      // git 仓库目录
	Application string `toml:"application"`  // 应用名
	Profile     string `toml:"profile"`      // profile 名（空为 default）
	Label       string `toml:"label"`        // 版本标签（空为当前 Head）
	ServerURL   string `toml:"server_url"`   // 客户端访问的配置服务地址
	RedisAddr   string `toml:"redis_addr"`   // Redis 地址
	RedisPrefix string `toml:"redis_prefix"` // Redis Key 前缀
	StateFile   string `toml:"state_file"`   // refresh 的本地状态文件
}

// NewConfig 返回带默认值的配置。
func NewConfig() *Config {
	return &Config{
		Listen:      "localhost:8888",
		GitDir:      ".",
		Application: "application",
		Profile:     "",
		Label:       "",
		ServerURL:   "http://localhost:8888",
		RedisAddr:   "localhost:6379",
		RedisPrefix: "",
		StateFile:   ".bttgitconf.state",
	}
}

// Load 读取 TOML 配置文件并覆盖默认值。
func (c *Config) Load(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}
