package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/service"
)

const cliAttachmentSlot = "cli"

var errConfirmInvalid = errors.New("확인 요청이 유효하지 않습니다. 다시 시도해주세요.")

// draftFlags 新建/编辑共用的表单参数
type draftFlags struct {
	title        string
	description  string
	start        string
	end          string
	category     string
	emotion      string
	satisfaction int
	attach       []string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "标题")
	cmd.Flags().StringVarP(&f.description, "desc", "d", "", "内容")
	cmd.Flags().StringVar(&f.start, "start", "", "开始日期 (YYYY.MM.DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "结束日期 (YYYY.MM.DD)")
	cmd.Flags().StringVar(&f.category, "category", "", "分类（预设之外的值按自定义处理）")
	cmd.Flags().StringVar(&f.emotion, "emotion", "", "情绪（预设之外的值按自定义处理）")
	cmd.Flags().IntVarP(&f.satisfaction, "satisfaction", "s", 0, "满意度 1-10")
	cmd.Flags().StringSliceVarP(&f.attach, "attach", "a", nil, "附件路径，可重复")
}

// apply 只覆盖显式传入的参数
func (f *draftFlags) apply(cmd *cobra.Command, d *model.Draft) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		d.Title = f.title
	}
	if changed("desc") {
		d.Description = f.description
	}
	if changed("start") {
		d.StartDate = model.SanitizeDateInput(f.start)
	}
	if changed("end") {
		d.EndDate = model.SanitizeDateInput(f.end)
	}
	if changed("category") {
		d.Category, d.CustomCategory = choice(f.category, model.PresetCategories)
	}
	if changed("emotion") {
		d.Emotion, d.CustomEmotion = choice(f.emotion, model.PresetEmotions)
	}
	if changed("satisfaction") {
		d.Satisfaction = f.satisfaction
	}
	for _, path := range f.attach {
		if err := attachFile(d, path); err != nil {
			return err
		}
	}
	return nil
}

func choice(v string, presets []string) (string, string) {
	for _, p := range presets {
		if p == v {
			return v, ""
		}
	}
	return model.CustomSentinel, v
}

func attachFile(d *model.Draft, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开附件失败: %w", err)
	}
	defer f.Close()

	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return userError(core.Services.Attachments.AttachToDraft(d, cliAttachmentSlot, filepath.Base(path), "", size, f))
}

func addCmd() *cobra.Command {
	var flags draftFlags
	var year int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "新增一条经历",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := service.NewDraft(year, time.Now())
			if err := flags.apply(cmd, &draft); err != nil {
				return err
			}
			e, err := core.Services.Lifecycle.Create(cmd.Context(), draft)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 저장되었습니다: %s (%s)\n", e.Title, e.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&year, "year", 0, "日期预填为该年 1 月 1 日")
	return cmd
}

func editCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "编辑经历，只修改传入的字段",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ok := core.Services.Store.Find(args[0])
			if !ok {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", args[0])
			}
			draft := model.DraftFromExperience(*e)
			if err := flags.apply(cmd, &draft); err != nil {
				return err
			}
			updated, err := core.Services.Lifecycle.Update(cmd.Context(), e.ID, draft)
			if err != nil {
				return userError(err)
			}
			if updated == nil {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", e.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 수정되었습니다: %s\n", updated.Title)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func listCmd() *cobra.Command {
	var trash bool
	var asJSON bool
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "按年份查看时间线",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			now := time.Now()
			view := service.BuildTimeline(core.Services.Store.Profile(), core.Services.Store.Experiences(), now)

			if trash {
				if asJSON {
					return printJSON(out, view.Trash)
				}
				printTrash(out, view.Trash)
				return nil
			}
			if asJSON {
				return printJSON(out, view)
			}

			if p := core.Services.Store.Profile(); p != nil {
				fmt.Fprintf(out, "📅 %s 님의 타임라인 (%s, %s년생)\n", p.Name, p.Status, p.BirthYear)
			}
			fmt.Fprintln(out, "═══════════════════════════════════════")
			for i := len(view.Years) - 1; i >= 0; i-- {
				sec := view.Years[i]
				if len(sec.Experiences) == 0 && !all {
					continue
				}
				fmt.Fprintf(out, "\n%d\n", sec.Year)
				for _, e := range sec.Experiences {
					fmt.Fprintf(out, "  • [%s] %s  %s~%s  %s/%d  %s\n",
						e.ID[:min(8, len(e.ID))], e.Title, e.StartDate, e.EndDate, e.Category, e.Satisfaction, truncate(e.Description, 30))
				}
			}
			fmt.Fprintf(out, "\n총 %d개의 경험", view.ActiveCount)
			if view.Outside > 0 {
				fmt.Fprintf(out, " (연도 범위 밖 %d개)", view.Outside)
			}
			if len(view.Trash) > 0 {
				fmt.Fprintf(out, " · 휴지통 %d개", len(view.Trash))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&trash, "trash", false, "只看回收站")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON 输出")
	cmd.Flags().BoolVar(&all, "all", false, "显示没有经历的年份")
	return cmd
}

func printTrash(out io.Writer, list []model.Experience) {
	if len(list) == 0 {
		fmt.Fprintln(out, "휴지통이 비어 있습니다.")
		return
	}
	for _, e := range list {
		when := "-"
		if e.DeletedAt != nil {
			when = humanize.Time(*e.DeletedAt)
		}
		fmt.Fprintf(out, "  🗑  [%s] %s  (삭제: %s)\n", e.ID, e.Title, when)
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "查看单条经历",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ok := core.Services.Store.Find(args[0])
			if !ok {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", e.Title)
			fmt.Fprintf(out, "  기간: %s ~ %s\n", e.StartDate, e.EndDate)
			fmt.Fprintf(out, "  분류: %s · 감정: %s · 만족도: %d/10\n", e.Category, e.Emotion, e.Satisfaction)
			fmt.Fprintf(out, "\n%s\n", e.Description)
			for _, a := range e.Attachments {
				fmt.Fprintf(out, "  📎 %s (%s, %s)\n", a.Name, a.Type, humanize.IBytes(uint64(a.PayloadSize())))
			}
			return nil
		},
	}
}

func trashCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "trash <id>",
		Aliases: []string{"rm"},
		Short:   "移入回收站",
		Args:    cobra.ExactArgs(1),
		RunE:    func(cmd *cobra.Command, args []string) error {
			found, err := core.Services.Lifecycle.SoftDelete(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			if !found {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "휴지통으로 이동했습니다.")
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "从回收站恢复",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := core.Services.Lifecycle.Restore(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			if !found {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "복원되었습니다.")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <id>",
		Short: "永久删除（需要确认）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ok := core.Services.Store.Find(args[0])
			if !ok {
				return fmt.Errorf("해당 경험을 찾을 수 없습니다: %s", args[0])
			}
			gate := core.Services.Confirm
			pending := gate.Arm(service.ActionPurge, e.ID)
			if !yes && !askYesNo(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("'%s'을(를) 영구 삭제할까요? 되돌릴 수 없습니다.", e.Title)) {
				gate.Cancel(pending.Token)
				fmt.Fprintln(cmd.OutOrStdout(), "취소되었습니다.")
				return nil
			}
			if _, ok := gate.Confirm(pending.Token, service.ActionPurge); !ok {
				return errConfirmInvalid
			}
			if _, err := core.Services.Lifecycle.PermanentDelete(cmd.Context(), e.ID); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "영구 삭제되었습니다.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}
