package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"liveclass/internal/app"
	"liveclass/internal/config"
	"liveclass/pkg/types"
)

var (
	courseTitle      string
	courseInstructor string
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage the course catalogue",
	Long:  `Catalogued courses are the sessions an instructor can start by id.`,
}

var courseAddCmd = &cobra.Command{
	Use:   "add <course-id>",
	Short: "Create or update a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		course := &types.Course{ID: args[0], Title: courseTitle, InstructorID: courseInstructor}
		if !types.IsValidSessionID(course.ID) {
			return types.ErrInvalidSessionID
		}
		if !types.IsValidUserID(course.InstructorID) {
			return fmt.Errorf("invalid instructor id %q", course.InstructorID)
		}

		cfg, err := config.Resolve(configPath)
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.UpsertCourse(cmd.Context(), course); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "course %s saved (instructor %s)\n", course.ID, course.InstructorID)
		return nil
	},
}

var courseShowCmd = &cobra.Command{
	Use:   "show <course-id>",
	Short: "Print a course as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(configPath)
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		course, err := store.FindCourseByID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("course %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(course)
	},
}

func init() {
	rootCmd.AddCommand(courseCmd)
	courseCmd.AddCommand(courseAddCmd, courseShowCmd)
	courseAddCmd.Flags().StringVar(&courseTitle, "title", "", "Course title")
	courseAddCmd.Flags().StringVar(&courseInstructor, "instructor", "", "Instructor user id")
	_ = courseAddCmd.MarkFlagRequired("instructor")
}
