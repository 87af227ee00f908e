package webctl

// ControlPage is served on "/". Each button issues a command path and
// ignores the reply.
const ControlPage = `<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Rescuebot</title>
<style>
body { font-family: sans-serif; text-align: center; background: #222; color: #eee; }
.pad { display: grid; grid-template-columns: repeat(3, 90px); gap: 8px; justify-content: center; margin: 16px 0; }
button { height: 60px; font-size: 16px; border: none; border-radius: 8px; background: #4a6; color: #fff; }
button.stop { background: #c33; }
button.aux { background: #36a; }
input[type=range] { width: 280px; }
</style>
</head>
<body>
<h2>Rescuebot</h2>
<div class="pad">
  <span></span><button onclick="send('forward')">Forward</button><span></span>
  <button onclick="send('left')">Left</button>
  <button class="stop" onclick="send('stop_chassis')">Halt</button>
  <button onclick="send('right')">Right</button>
  <span></span><button onclick="send('backward')">Back</button><span></span>
</div>
<div class="pad">
  <button class="aux" onclick="send('forklift_up')">Lift up</button>
  <button class="aux" onclick="send('forklift_down')">Lift down</button>
  <button class="stop" onclick="send('stop')">STOP</button>
  <button class="aux" onclick="send('cam_a')">Cam A</button>
  <button class="aux" onclick="send('cam_b')">Cam B</button>
  <span></span>
  <button onclick="send('led_on')">LED on</button>
  <button onclick="send('led_off')">LED off</button>
</div>
<p>Speed: <span id="speed">512</span></p>
<input type="range" min="0" max="1023" value="512"
  oninput="document.getElementById('speed').textContent = this.value"
  onchange="send('set_speed?value=' + this.value)">
<script>
function send(cmd) { fetch('/' + cmd).catch(function () {}); }
</script>
</body>
</html>
`
