package httpd

// indexHTML is the embedded configuration page. Static content only; all
// state comes from the JSON endpoints.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Weather Station</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 30em; }
fieldset { margin-bottom: 1em; border: 1px solid #999; }
#reading, #status { font-size: 1.2em; }
</style>
</head>
<body>
<h1>Weather Station</h1>
<fieldset>
<legend>Latest reading</legend>
<div id="reading">&mdash;</div>
</fieldset>
<fieldset>
<legend>Join a network</legend>
<input id="ssid" placeholder="SSID">
<input id="pass" type="password" placeholder="Passphrase">
<button onclick="connect()">Connect</button>
</fieldset>
<fieldset>
<legend>Firmware update</legend>
<input id="fw" type="file">
<button onclick="upload()">Upload</button>
<div id="status"></div>
</fieldset>
<script>
async function refresh() {
  try {
    const r = await fetch('/readings');
    if (r.ok) {
      const j = await r.json();
      document.getElementById('reading').textContent =
        'Temp: ' + j.temperature + j.unit + '  Humidity: ' + j.humidity + '%';
    }
  } catch (e) {}
}
async function connect() {
  await fetch('/wifiConnect', {method: 'POST', body: JSON.stringify({
    ssid: document.getElementById('ssid').value,
    passphrase: document.getElementById('pass').value})});
}
async function upload() {
  const f = document.getElementById('fw').files[0];
  if (!f) return;
  await fetch('/OTAupdate', {method: 'POST', body: f});
  const s = await (await fetch('/OTAstatus')).json();
  document.getElementById('status').textContent = s.status;
}
refresh();
setInterval(refresh, 10000);
</script>
</body>
</html>
`
