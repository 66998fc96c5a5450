package server

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>meetscope</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 0 auto; padding: 16px; color: #222; }
fieldset { margin-bottom: 16px; border: 1px solid #ddd; border-radius: 8px; }
.participant { display: flex; gap: 8px; margin-bottom: 8px; }
#status { margin-top: 16px; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>Meeting analysis</h1>
<form id="analysis-form">
<fieldset>
<legend>Meeting recording</legend>
<input type="file" name="audio" accept="audio/*" required>
</fieldset>
<fieldset>
<legend>Participants</legend>
<div id="participants"></div>
<button type="button" id="add-participant">+ Add participant</button>
</fieldset>
<fieldset>
<legend>Options</legend>
<label><input type="checkbox" name="summary" value="true"{{if .IncludeSummary}} checked{{end}}> Meeting summary</label>
<label><input type="checkbox" name="transcript" value="true"{{if .IncludeTranscript}} checked{{end}}> Transcript</label>
<label>Language <input type="text" name="language" value="{{.Language}}"></label>
</fieldset>
<button type="submit">Analyze</button>
</form>
<div id="status"></div>
<script>
var participants = document.getElementById("participants");

document.getElementById("add-participant").addEventListener("click", function () {
  var row = document.createElement("div");
  row.className = "participant";
  row.innerHTML = '<input type="text" placeholder="Participant name">' +
    '<input type="file" accept="audio/*">';
  participants.appendChild(row);
});

document.getElementById("analysis-form").addEventListener("submit", function (event) {
  event.preventDefault();
  var form = event.target;
  var data = new FormData();
  data.append("audio", form.audio.files[0]);
  ["summary", "transcript"].forEach(function (name) {
    data.append(name, form[name].checked ? "true" : "false");
  });
  data.append("language", form.language.value);

  participants.querySelectorAll(".participant").forEach(function (row, i) {
    var inputs = row.querySelectorAll("input");
    data.append("participant_name[" + i + "]", inputs[0].value);
    if (inputs[1].files.length > 0) {
      data.append("participant_file[" + i + "]", inputs[1].files[0]);
    }
  });

  var status = document.getElementById("status");
  status.className = "";
  status.textContent = "Uploading and analyzing, this can take several minutes...";

  fetch("/api/analyses", { method: "POST", body: data })
    .then(function (resp) {
      return resp.json().then(function (body) {
        if (!resp.ok) {
          throw new Error(body.error || resp.statusText);
        }
        window.location = "/analyses/" + body.run.id;
      });
    })
    .catch(function (err) {
      status.className = "error";
      status.textContent = err.message;
    });
});
</script>
</body>
</html>
`))
