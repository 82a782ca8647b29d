package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuqie6/lifemap/internal/httpapi"
	"github.com/yuqie6/lifemap/internal/layout"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/service"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "用户档案",
	}

	var p model.UserProfile
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "首次填写档案（修改需先 reset）",
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := core.Services.App.CompleteProfile(cmd.Context(), p)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 반갑습니다, %s 님!\n", saved.Name)
			return nil
		},
	}
	initCmd.Flags().StringVar(&p.Name, "name", "", "姓名")
	initCmd.Flags().StringVar(&p.BirthYear, "birth-year", "", "出生年份 (4 位)")
	initCmd.Flags().StringVar(&p.Status, "status", "", "当前身份，如 대학생")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "查看档案",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := core.Services.Store.Profile()
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "프로필이 없습니다. 'lifemap profile init'으로 설정해주세요.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "이름: %s\n출생연도: %s\n상태: %s\n", p.Name, p.BirthYear, p.Status)
			return nil
		},
	})

	return cmd
}

func graphCmd() *cobra.Command {
	var width, height float64
	var analyze bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "计算关系图布局（稳定后的坐标）",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *model.AnalysisResult
			if analyze {
				if err := core.RequireAIConfigured(); err != nil {
					return err
				}
				res, err := core.Services.App.Analyze(cmd.Context())
				if err != nil {
					return userError(err)
				}
				result = res
			}
			frame, err := core.Services.Graph.Layout(result, width, height)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), frame)
			}
			printFrame(cmd.OutOrStdout(), frame)
			return nil
		},
	}
	cmd.Flags().Float64Var(&width, "width", 0, "画布宽度（默认取配置）")
	cmd.Flags().Float64Var(&height, "height", 0, "画布高度（默认取配置）")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "先做 AI 分析以获得连线")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON 输出")
	return cmd
}

func printFrame(out io.Writer, f layout.Frame) {
	fmt.Fprintf(out, "tick=%d alpha=%.4f state=%s\n", f.Tick, f.Alpha, f.State)
	for _, n := range f.Nodes {
		fmt.Fprintf(out, "  ● %-20s (%7.1f, %7.1f)  %s\n", truncate(n.Title, 20), n.X, n.Y, n.Category)
	}
	for _, e := range f.Edges {
		fmt.Fprintf(out, "  ─ %s → %s  %s\n", e.SourceID, e.TargetID, truncate(e.Reason, 40))
	}
}

func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "清空档案与全部经历（需要确认）",
		RunE: func(cmd *cobra.Command, args []string) error {
			gate := core.Services.Confirm
			pending := gate.Arm(service.ActionReset, "")
			if !yes && !askYesNo(cmd.InOrStdin(), cmd.OutOrStdout(), "모든 데이터가 삭제됩니다. 계속할까요?") {
				gate.Cancel(pending.Token)
				fmt.Fprintln(cmd.OutOrStdout(), "취소되었습니다.")
				return nil
			}
			if _, ok := gate.Confirm(pending.Token, service.ActionReset); !ok {
				return errConfirmInvalid
			}
			if err := core.Services.App.Reset(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "초기화되었습니다.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动本地 HTTP API 与 UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(addr) == "" {
				addr = core.Cfg.Server.ListenAddr
			}
			srv, err := httpapi.Start(ctx, httpapi.DepsFromCore(core), httpapi.Options{ListenAddr: addr})
			if err != nil {
				return fmt.Errorf("启动本地 HTTP 失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 %s\n", srv.BaseURL())

			<-ctx.Done()
			slog.Info("收到退出信号，正在关闭")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址（默认取配置 server.listen_addr）")
	return cmd
}
