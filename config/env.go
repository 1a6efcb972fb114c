package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	envConfigFile = ".env.config"
	envFile       = ".env"
	maxEnvDepth   = 5
)

// LoadEnvFiles 从 dir 开始向上最多查找 5 层目录，先加载 .env.config(公共配置)，
// 再用 .env(密钥) 覆盖。已存在的环境变量不会被 .env.config 覆盖。
// 返回实际加载的文件。
func LoadEnvFiles(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var loaded []string
	if p := findUp(root, envConfigFile); p != "" {
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	if p := findUp(root, envFile); p != "" {
		if err := godotenv.Overload(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func findUp(dir, name string) string {
	for i := 0; i <= maxEnvDepth; i++ {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
