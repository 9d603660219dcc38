package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"pickflow/frontend/shared/html"
	"pickflow/frontend/shared/nav"
	"pickflow/models"
)

// PageData carries everything the admin dashboard renders.
type PageData struct {
	Orders []models.Order

	// Form state carried back through the redirect after a failed submit.
	OrderNumber  string
	PalletNumber string
	ErrorText    string
	StatusText   string
}

// DashboardPage renders the order list plus the new-order form.
func DashboardPage(data PageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.Notice(data.ErrorText, true).Render(ctx, w); err != nil {
			return err
		}
		if err := html.Notice(data.StatusText, false).Render(ctx, w); err != nil {
			return err
		}
		if err := renderNewOrderForm(w, data); err != nil {
			return err
		}
		return renderOrdersGrid(w, data.Orders)
	})
	return html.Layout("Orders", nav.TopNav(nav.SectionAdmin), body)
}

func renderNewOrderForm(w io.Writer, data PageData) error {
	_, err := fmt.Fprintf(w, `<section class="card">
<h2>New Order</h2>
<form method="POST" action="/admin/orders" enctype="multipart/form-data" id="new-order-form">
  <label>Order Number<input type="text" name="order_number" value="%s" required></label>
  <label>Pallet Number<input type="text" name="pallet_number" value="%s" required></label>
  <label>Manifest Photo<input type="file" name="manifest" accept="image/*" id="manifest-input"></label>
  <p class="hint">You can also paste a screenshot of the manifest table (Ctrl+V).</p>
  <img id="manifest-preview" class="manifest-preview hidden" alt="manifest preview">
  <button type="submit" class="btn">Create Order</button>
</form>
</section>
<script>
(function () {
  var input = document.getElementById("manifest-input");
  var preview = document.getElementById("manifest-preview");
  if (!input || !preview) return;

  function showPreview(file) {
    var reader = new FileReader();
    reader.onload = function () {
      preview.src = reader.result;
      preview.classList.remove("hidden");
    };
    reader.readAsDataURL(file);
  }

  input.addEventListener("change", function () {
    if (input.files && input.files[0]) showPreview(input.files[0]);
  });

  document.addEventListener("paste", function (event) {
    var items = event.clipboardData && event.clipboardData.items;
    if (!items) return;
    for (var i = 0; i < items.length; i++) {
      if (items[i].type.indexOf("image/") !== 0) continue;
      var file = items[i].getAsFile();
      if (!file) continue;
      var transfer = new DataTransfer();
      transfer.items.add(file);
      input.files = transfer.files;
      showPreview(file);
      event.preventDefault();
      return;
    }
  });
})();
</script>`,
		templ.EscapeString(data.OrderNumber),
		templ.EscapeString(data.PalletNumber))
	return err
}

func renderOrdersGrid(w io.Writer, orders []models.Order) error {
	if _, err := io.WriteString(w, `<section class="card"><h2>Orders</h2>`); err != nil {
		return err
	}
	if len(orders) == 0 {
		_, err := io.WriteString(w, `<p class="hint">No orders yet.</p></section>`)
		return err
	}
	if _, err := io.WriteString(w, `<table class="orders"><thead><tr><th>Order</th><th>Pallet</th><th>Status</th><th>Lines</th><th>Progress</th><th></th></tr></thead><tbody>`); err != nil {
		return err
	}
	for _, order := range orders {
		done := 0
		for _, item := range order.Items {
			if item.Done() {
				done++
			}
		}
		if _, err := fmt.Fprintf(w,
			`<tr><td>%s</td><td>%s</td><td><span class="status status-%s">%s</span></td><td>%d</td><td>%d/%d</td>`+
				`<td><a class="btn btn-small" href="/admin/orders/%s/qr.png" target="_blank">Send to handheld</a> `+
				`<a class="btn btn-small" href="/admin/orders/%s/ticket.pdf" target="_blank">Pick ticket</a> `+
				`<a class="btn btn-small" href="/admin/exports/serials.csv?order=%s">Serials CSV</a></td></tr>`,
			templ.EscapeString(order.OrderNumber),
			templ.EscapeString(order.PalletNumber),
			templ.EscapeString(order.Status),
			templ.EscapeString(order.Status),
			len(order.Items), done, len(order.Items),
			templ.EscapeString(order.ID),
			templ.EscapeString(order.ID),
			templ.EscapeString(order.ID)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</tbody></table></section>`)
	return err
}
