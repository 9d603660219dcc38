package operator

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"pickflow/frontend/shared/html"
	"pickflow/frontend/shared/nav"
	"pickflow/models"
)

// BrowsePage lists orders that still need picking work. The page reloads
// itself whenever the server broadcasts an order change.
func BrowsePage(orders []models.Order, notice string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.Notice(notice, false).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<div class="toolbar"><a class="btn" href="/operator/scan">Scan handoff code</a></div>`); err != nil {
			return err
		}
		if len(orders) == 0 {
			if _, err := io.WriteString(w, `<p class="hint">No open orders. Waiting for the office to send work.</p>`); err != nil {
				return err
			}
		}
		for _, order := range orders {
			done := 0
			for _, item := range order.Items {
				if item.Done() {
					done++
				}
			}
			if _, err := fmt.Fprintf(w,
				`<a class="card order-card" href="/operator/orders/%s"><span class="order-number">%s</span><span class="pallet">Pallet %s</span><span class="status status-%s">%s</span><span class="progress">%d/%d lines</span></a>`,
				templ.EscapeString(order.ID),
				templ.EscapeString(order.OrderNumber),
				templ.EscapeString(order.PalletNumber),
				templ.EscapeString(order.Status),
				templ.EscapeString(order.Status),
				done, len(order.Items)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, autoRefreshScript)
		return err
	})
	return html.Layout("Picking", nav.TopNav(nav.SectionOperator), body)
}

// OrderPage shows one order's lines with their capture progress.
func OrderPage(order models.Order, notice string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.Notice(notice, false).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<div class="toolbar"><a class="btn btn-small" href="/operator">Back</a></div><h2>Order %s &middot; Pallet %s</h2>`,
			templ.EscapeString(order.OrderNumber),
			templ.EscapeString(order.PalletNumber)); err != nil {
			return err
		}
		for _, item := range order.Items {
			doneClass := ""
			if item.Done() {
				doneClass = " item-done"
			}
			if _, err := fmt.Fprintf(w,
				`<a class="card item-card%s" href="/operator/orders/%s/items/%s"><span class="line">Line %s</span><span class="location">%s</span><span class="article">%s</span><span class="progress">%d/%d %s</span></a>`,
				doneClass,
				templ.EscapeString(order.ID),
				templ.EscapeString(item.ItemID),
				templ.EscapeString(item.Line),
				templ.EscapeString(item.Location),
				templ.EscapeString(item.Article),
				item.ScannedCount, item.Quantity,
				templ.EscapeString(item.Unit)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w,
			`<form method="POST" action="/operator/orders/%s/finalize" onsubmit="return confirm('Finalize this order? Lines cannot be changed afterwards.')"><button type="submit" class="btn btn-danger">Finalize order</button></form>`,
			templ.EscapeString(order.ID)); err != nil {
			return err
		}
		_, err := io.WriteString(w, autoRefreshScript)
		return err
	})
	return html.Layout("Order "+order.OrderNumber, nav.TopNav(nav.SectionOperator), body)
}

// ItemPage shows one line with its serial draft. Serials live in the form
// until Confirm posts the whole list; leaving the page without confirming
// discards the edits.
func ItemPage(order models.Order, item models.PickingItem, notice string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.Notice(notice, false).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<div class="toolbar"><a class="btn btn-small" href="/operator/orders/%s">Back</a></div>`+
				`<h2>Line %s &middot; %s</h2><p class="location-big">%s</p>`+
				`<p class="hint">Required: %d %s &middot; Captured: <span id="serial-count">%d</span></p>`,
			templ.EscapeString(order.ID),
			templ.EscapeString(item.Line),
			templ.EscapeString(item.Article),
			templ.EscapeString(item.Location),
			item.Quantity,
			templ.EscapeString(item.Unit),
			len(item.Serials)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<form method="POST" action="/operator/orders/%s/items/%s" id="serial-form"><ul id="serial-list">`,
			templ.EscapeString(order.ID),
			templ.EscapeString(item.ItemID)); err != nil {
			return err
		}
		for _, serial := range item.Serials {
			if err := writeSerialRow(w, serial); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w,
			`</ul><div class="serial-entry"><input type="text" id="serial-input" placeholder="Serial number" autocomplete="off" autofocus>`+
				`<button type="button" class="btn" id="serial-add">Add</button></div>`+
				`<button type="submit" class="btn btn-primary">Confirm line</button></form>`); err != nil {
			return err
		}
		_, err := io.WriteString(w, serialDraftScript)
		return err
	})
	return html.Layout("Line "+item.Line, nav.TopNav(nav.SectionOperator), body)
}

func writeSerialRow(w io.Writer, serial string) error {
	_, err := fmt.Fprintf(w,
		`<li class="serial-row"><input type="hidden" name="serials" value="%s"><span>%s</span><button type="button" class="btn btn-small serial-remove">Remove</button></li>`,
		templ.EscapeString(serial),
		templ.EscapeString(serial))
	return err
}

// ScanPage opens the device camera and posts the first decoded QR payload
// to the resolve endpoint. Decoding happens client-side; the server only
// sees the raw payload text.
func ScanPage(notice string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.Notice(notice, false).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w,
			`<div class="toolbar"><a class="btn btn-small" href="/operator">Back</a></div>`+
				`<h2>Scan Handoff Code</h2>`+
				`<video id="scan-video" class="scan-video" autoplay playsinline muted></video>`+
				`<canvas id="scan-canvas" class="hidden"></canvas>`+
				`<p id="scan-status" class="hint">Starting camera...</p>`+
				`<form method="POST" action="/operator/resolve" id="resolve-form"><input type="hidden" name="payload" id="payload-input"></form>`); err != nil {
			return err
		}
		_, err := io.WriteString(w, scanPageScript)
		return err
	})
	return html.Layout("Scan", nav.TopNav(nav.SectionOperator), body)
}

const autoRefreshScript = `<script>
(function () {
  if (!window.EventSource) return;
  var source = new EventSource("/api/events");
  var first = true;
  source.onmessage = function () {
    if (first) { first = false; return; }
    source.close();
    location.reload();
  };
})();
</script>`

const serialDraftScript = `<script>
(function () {
  var input = document.getElementById("serial-input");
  var addBtn = document.getElementById("serial-add");
  var list = document.getElementById("serial-list");
  var count = document.getElementById("serial-count");

  function syncCount() {
    if (count) count.textContent = list.querySelectorAll("li").length;
  }

  function escapeHTML(s) {
    var div = document.createElement("div");
    div.textContent = s;
    return div.innerHTML;
  }

  function addSerial() {
    var value = input.value.trim();
    if (!value) return;
    var li = document.createElement("li");
    li.className = "serial-row";
    li.innerHTML = '<input type="hidden" name="serials">' +
      "<span>" + escapeHTML(value) + "</span>" +
      '<button type="button" class="btn btn-small serial-remove">Remove</button>';
    li.querySelector("input").value = value;
    list.appendChild(li);
    input.value = "";
    input.focus();
    syncCount();
    if (navigator.vibrate) navigator.vibrate(50);
  }

  addBtn.addEventListener("click", addSerial);
  input.addEventListener("keydown", function (event) {
    if (event.key !== "Enter") return;
    event.preventDefault();
    addSerial();
  });
  list.addEventListener("click", function (event) {
    var btn = event.target.closest(".serial-remove");
    if (!btn) return;
    btn.closest("li").remove();
    syncCount();
  });
})();
</script>`

const scanPageScript = `<script src="https://cdn.jsdelivr.net/npm/jsqr@1.4.0/dist/jsQR.min.js"></script>
<script>
(function () {
  var video = document.getElementById("scan-video");
  var canvas = document.getElementById("scan-canvas");
  var status = document.getElementById("scan-status");
  var form = document.getElementById("resolve-form");
  var payload = document.getElementById("payload-input");
  var submitted = false;

  function setStatus(msg) { if (status) status.textContent = msg; }

  function tick() {
    if (submitted) return;
    if (video.readyState === video.HAVE_ENOUGH_DATA) {
      canvas.width = video.videoWidth;
      canvas.height = video.videoHeight;
      var ctx = canvas.getContext("2d");
      ctx.drawImage(video, 0, 0, canvas.width, canvas.height);
      var imageData = ctx.getImageData(0, 0, canvas.width, canvas.height);
      var code = window.jsQR && window.jsQR(imageData.data, imageData.width, imageData.height);
      if (code && code.data) {
        submitted = true;
        if (navigator.vibrate) navigator.vibrate([100, 50, 100]);
        if (video.srcObject) {
          video.srcObject.getTracks().forEach(function (t) { t.stop(); });
        }
        payload.value = code.data;
        form.submit();
        return;
      }
    }
    requestAnimationFrame(tick);
  }

  navigator.mediaDevices.getUserMedia({ video: { facingMode: { ideal: "environment" } } })
    .then(function (stream) {
      video.srcObject = stream;
      setStatus("Point the camera at the handoff code");
      requestAnimationFrame(tick);
    })
    .catch(function (err) {
      setStatus("Camera failed: " + (err && err.message ? err.message : err));
    });
})();
</script>`
