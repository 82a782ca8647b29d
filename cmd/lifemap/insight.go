package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/service"
)

func analyzeCmd() *cobra.Command {
	var asJSON bool
	var withGraph bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "AI 分析全部有效经历",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.RequireAIConfigured(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "🔍 경험을 분석하는 중입니다...")

			res, err := core.Services.App.Analyze(cmd.Context())
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(out, res)
			}
			printAnalysis(out, res)

			if withGraph {
				frame, err := core.Services.Graph.Layout(res, 0, 0)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintln(out, "\n🕸  관계 지도")
				printFrame(out, frame)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON 输出")
	cmd.Flags().BoolVar(&withGraph, "graph", false, "同时输出关系图布局")
	return cmd
}

func printAnalysis(out io.Writer, res *model.AnalysisResult) {
	fmt.Fprintln(out, "═══════════════════════════════════════")
	fmt.Fprintf(out, "\n📝 요약\n%s\n", res.Summary)
	printList(out, "🌟 강점", res.Strengths)
	printList(out, "💡 흥미", res.Interests)
	fmt.Fprintf(out, "\n🧩 문제 해결 스타일\n%s\n", res.ProblemSolvingStyle)
	fmt.Fprintf(out, "\n⚡ 에너지 방향\n%s\n", res.EnergyDirection)
	printList(out, "🎯 실행 계획", res.ActionPlan)

	if len(res.Relationships) > 0 {
		titles := map[string]string{}
		for _, e := range core.Services.Store.Experiences() {
			titles[e.ID] = e.Title
		}
		fmt.Fprintf(out, "\n🔗 경험 사이의 연결\n")
		for _, r := range res.Relationships {
			fmt.Fprintf(out, "  • %s ↔ %s: %s\n", titleOr(titles, r.SourceID), titleOr(titles, r.TargetID), r.Reason)
		}
	}
	fmt.Fprintln(out, "\n═══════════════════════════════════════")
}

func titleOr(titles map[string]string, id string) string {
	if t, ok := titles[id]; ok {
		return t
	}
	return id
}

func printList(out io.Writer, heading string, items []string) {
	fmt.Fprintf(out, "\n%s\n", heading)
	for _, it := range items {
		fmt.Fprintf(out, "  • %s\n", it)
	}
}

func checklistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checklist <行动>",
		Short: "为行动计划生成执行清单",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := strings.Join(args, " ")
			items := core.Services.Insight.GenerateChecklist(cmd.Context(), action)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ %s\n", action)
			for _, it := range items {
				fmt.Fprintf(out, "  ☐ %s\n", it)
			}
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "从文件或链接导入经历",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "file <path>",
		Short: "从图片/文本文件提取经历",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.RequireAIConfigured(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("读取文件失败: %w", err)
			}
			created, err := core.Services.Insight.ImportFile(cmd.Context(), filepath.Base(args[0]), "", data)
			if err != nil {
				return userError(err)
			}
			printImported(cmd.OutOrStdout(), created)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "url <url>",
		Short: "从网页提取经历",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := service.ValidateImportURL(args[0]); err != nil {
				return userError(err)
			}
			if err := core.RequireAIConfigured(); err != nil {
				return err
			}
			created, err := core.Services.Insight.ImportURL(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			printImported(cmd.OutOrStdout(), created)
			return nil
		},
	})

	return cmd
}

func printImported(out io.Writer, created []model.Experience) {
	fmt.Fprintf(out, "✅ %d개의 경험을 가져왔습니다.\n", len(created))
	for _, e := range created {
		fmt.Fprintf(out, "  • [%s] %s (%s)\n", e.ID, e.Title, e.StartDate)
	}
}

func cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "情境卡片快速添加",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出全部卡片",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range service.SituationCards() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-4s %s\n       → %s · %s\n", c.ID, c.Question, c.Title, c.Category)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <id>...",
		Short: "按卡片 id 批量新增",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := core.Services.QuickAdd.AddCards(cmd.Context(), args)
			if err != nil {
				return userError(err)
			}
			printImported(cmd.OutOrStdout(), created)
			return nil
		},
	})

	return cmd
}

func milestonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "milestones",
		Short: "逐个回答回忆引导问题",
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := askMilestones(cmd.InOrStdin(), cmd.OutOrStdout(), service.Milestones())
			created, err := core.Services.QuickAdd.AddMilestones(cmd.Context(), answers)
			if err != nil {
				return userError(err)
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "입력된 답변이 없습니다.")
				return nil
			}
			printImported(cmd.OutOrStdout(), created)
			return nil
		},
	}
}

// askMilestones 每个问题读取一行内容和一行日期，空行跳过
func askMilestones(in io.Reader, out io.Writer, list []model.Milestone) []model.MilestoneAnswer {
	sc := bufio.NewScanner(in)
	readLine := func() string {
		if !sc.Scan() {
			return ""
		}
		return strings.TrimSpace(sc.Text())
	}

	answers := make([]model.MilestoneAnswer, 0, len(list))
	for _, m := range list {
		fmt.Fprintf(out, "\n%s\n%s\n(%s)\n> ", m.Title, m.Question, m.Hint)
		desc := readLine()
		if desc == "" {
			continue
		}
		fmt.Fprint(out, "날짜 (YYYY.MM.DD, 생략 가능) > ")
		answers = append(answers, model.MilestoneAnswer{
			MilestoneID: m.ID,
			Description: desc,
			Date:        readLine(),
		})
	}
	return answers
}
