package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yuqie6/lifemap/internal/bootstrap"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
	"github.com/yuqie6/lifemap/internal/pkg/buildinfo"
	"github.com/yuqie6/lifemap/internal/pkg/config"
)

// 不需要打开数据库的命令
const skipCoreAnnotation = "lifemap/skip-core"

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "lifemap",
		Short:        "Lifemap - 人生经历时间线与自我洞察",
		Long:         `Lifemap 在本地记录人生经历，按年份整理成时间线，并借助 AI 生成优势/兴趣分析与关系图。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipCoreAnnotation] != "" {
				return nil
			}
			var err error
			core, err = bootstrap.NewCore(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			if core.DB.SafeMode {
				slog.Warn("数据库处于安全模式，写入会失败", "error", core.DB.MigrationError)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(trashCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(cardsCmd())
	rootCmd.AddCommand(milestonesCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "显示版本",
		Annotations: map[string]string{skipCoreAnnotation: "1"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lifemap %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "在可执行文件旁生成默认配置",
		Annotations: map[string]string{skipCoreAnnotation: "1"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			created, err := config.EnsureDefault(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ 설정 파일을 만들었습니다: %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "설정 파일이 이미 있습니다: %s\n", path)
			}
			return nil
		},
	})
	return cmd
}

// userError 把服务错误转成面向用户的提示
func userError(err error) error {
	if err == nil {
		return nil
	}
	msg := apperr.UserMessage(err, "")
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s", msg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// askYesNo 读取一行确认输入，只有 y/yes 视为同意
func askYesNo(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/N): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
