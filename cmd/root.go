/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/scenetran/internal/run"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "scenetran",
	Short: "Scene-based script translation pipeline",
	Long: `A pipeline that translates game and visual-novel scripts scene by scene
through configurable phases: machine pretranslation, LLM translation,
QA review, and a final editing pass with pre-commit validation.

Use "scenetran run --help" for run options.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(run.ExitCode(err))
	}
}
