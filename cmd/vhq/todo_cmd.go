package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
	"github.com/vhq-lag/vhq/internal/todo"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage the personal todo list",
}

var todoAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoAdd,
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos",
	RunE:  runTodoList,
}

var todoToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Mark a todo done or not done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoToggle,
}

var todoRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoRm,
}

var (
	todoDesc     string
	todoDue      string
	todoPriority string
	todoAll      bool
)

func init() {
	todoCmd.AddCommand(todoAddCmd, todoListCmd, todoToggleCmd, todoRmCmd)

	todoAddCmd.Flags().StringVar(&todoDesc, "desc", "", "Description")
	todoAddCmd.Flags().StringVar(&todoDue, "due", "", "Due date as DD/MM")
	todoAddCmd.Flags().StringVar(&todoPriority, "priority", "low", "Priority (low, medium, high)")

	todoListCmd.Flags().BoolVar(&todoAll, "all", false, "Include completed todos")
}

// withTodos opens the local list for the duration of fn.
func withTodos(fn func(*todo.List) error) error {
	s, err := store.New(cfg.Todo.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := todo.Open(s, cfg.Todo.StorageKey)
	if err != nil {
		return err
	}
	return fn(list)
}

func parseTodoID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", raw)
	}
	return id, nil
}

func runTodoAdd(cmd *cobra.Command, args []string) error {
	priority, ok := models.ParsePriority(todoPriority)
	if !ok {
		return fmt.Errorf("invalid priority %q", todoPriority)
	}
	return withTodos(func(list *todo.List) error {
		rec, err := list.Add(todo.Draft{
			Title:       args[0],
			Description: todoDesc,
			DueDate:     todoDue,
			Priority:    priority,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added todo %d\n", rec.ID)
		return nil
	})
}

func runTodoList(cmd *cobra.Command, args []string) error {
	return withTodos(func(list *todo.List) error {
		rows := list.Pending()
		if todoAll {
			rows = append(rows, list.Completed()...)
		}
		if len(rows) == 0 {
			fmt.Println("No todos found")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tDONE\tPRIORITY\tDUE\tAGENT\tTITLE")
		for _, r := range rows {
			done := " "
			if r.Completed {
				done = "x"
			}
			fmt.Fprintf(w, "%d\t[%s]\t%s\t%s\t%s\t%s\n",
				r.ID, done, r.Priority, orDash(r.DueDate), orDash(r.Agent), r.Title)
		}
		return w.Flush()
	})
}

func runTodoToggle(cmd *cobra.Command, args []string) error {
	id, err := parseTodoID(args[0])
	if err != nil {
		return err
	}
	return withTodos(func(list *todo.List) error {
		return list.Toggle(id)
	})
}

func runTodoRm(cmd *cobra.Command, args []string) error {
	id, err := parseTodoID(args[0])
	if err != nil {
		return err
	}
	return withTodos(func(list *todo.List) error {
		return list.Delete(id)
	})
}
