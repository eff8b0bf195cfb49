package report

import (
	"bufio"
	"io"
	"strings"
)

// Header is the first line of the CSV report.
var Header = []string{"Nome", "CPF", "Email", "Serviço", "Data", "Valor", "Status", "Observações"}

func (r Row) fields() []string {
	return []string{r.Name, r.TaxID, r.Email, r.Service, r.Date, r.Amount, r.Status, r.Notes}
}

// WriteCSV writes the header unquoted and then every row with each field
// wrapped in double quotes, embedded quotes doubled. Lines end in \n.
func WriteCSV(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		for i, f := range row.fields() {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(f)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
