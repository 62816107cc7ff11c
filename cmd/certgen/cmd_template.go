package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/pkg/docx"
)

var overwriteTemplate bool

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Certificate template helpers",
}

var templateInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter template that uses every placeholder",
	Long: `Writes a minimal .docx whose paragraphs reference every placeholder the
generator fills. Open it in a word processor and lay it out as needed; the
{{ name }} tokens are replaced per member.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplateInit,
}

// starterParagraphs is the body of the starter template
func starterParagraphs() []string {
	t := certificates.Token
	return []string{
		"DECLARAÇÃO",
		fmt.Sprintf("Declaramos que %s estudante %s, do curso de %s, cartão %s, atuou no setor %s do CEUE "+
			"durante %s meses do ano de %s, com carga horária de %s horas semanais, totalizando %s horas.",
			t(certificates.KeyArticle), t(certificates.KeyStudent), t(certificates.KeyCourse), t(certificates.KeyCard),
			t(certificates.KeySector), t(certificates.KeyTotalMonths), t(certificates.KeyYear),
			t(certificates.KeyWeeklyHours), t(certificates.KeyTotalHours)),
		fmt.Sprintf("%s aluno(a) faz jus aos créditos complementares correspondentes.", t(certificates.KeyArticleUpper)),
		fmt.Sprintf("Porto Alegre, %s.", t(certificates.KeyDocumentDate)),
		t(certificates.KeyDirector),
		"Diretoria do CEUE",
	}
}

func runTemplateInit(cmd *cobra.Command, args []string) error {
	path := cfg.Run.Template
	if len(args) == 1 {
		path = args[0]
	}
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return fmt.Errorf("template path must end in .docx: %s", path)
	}

	if _, err := os.Stat(path); err == nil && !overwriteTemplate {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	doc, err := docx.New(starterParagraphs()...)
	if err != nil {
		return err
	}
	if err := doc.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
